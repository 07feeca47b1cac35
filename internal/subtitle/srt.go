// Package subtitle writes the SRT sidecar described in §6: one cue per
// transcript segment, sequential numbering from 1, HH:MM:SS,mmm timestamps.
package subtitle

import (
	"fmt"
	"io"
	"strings"

	"video-worker/internal/domain"
)

// WriteSRT renders segments, in order, as a standard SRT file.
func WriteSRT(w io.Writer, segments []domain.TranscriptSegment) error {
	for i, seg := range segments {
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1, formatTimestamp(seg.TStart), formatTimestamp(seg.TEnd), strings.TrimSpace(seg.Text))
		if err != nil {
			return err
		}
	}
	return nil
}

func formatTimestamp(seconds float64) string {
	total := int64(seconds * 1000)
	ms := total % 1000
	total /= 1000
	s := total % 60
	total /= 60
	m := total % 60
	h := total / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
