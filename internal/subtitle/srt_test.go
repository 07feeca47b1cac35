package subtitle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"video-worker/internal/domain"
)

func TestWriteSRTSequentialNumbering(t *testing.T) {
	segments := []domain.TranscriptSegment{
		{TStart: 0, TEnd: 6, Text: "hello"},
		{TStart: 6, TEnd: 12.5, Text: "world"},
	}

	var buf strings.Builder
	require.NoError(t, WriteSRT(&buf, segments))

	want := "1\n00:00:00,000 --> 00:00:06,000\nhello\n\n" +
		"2\n00:00:06,000 --> 00:00:12,500\nworld\n\n"
	require.Equal(t, want, buf.String())
}

func TestFormatTimestampHandlesHours(t *testing.T) {
	require.Equal(t, "01:00:00,000", formatTimestamp(3600))
}
