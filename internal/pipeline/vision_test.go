package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"video-worker/internal/domain"
)

func setUpFramesAwaitingCaption(storage *fakeStorage, videoID string) {
	storage.scenes[videoID] = []domain.Scene{
		{ID: "s0", VideoID: videoID, Idx: 0},
		{ID: "s1", VideoID: videoID, Idx: 1},
	}
	storage.frames[videoID] = []domain.Frame{
		{ID: "f0", SceneID: "s0", Path: "frames/" + videoID + "/scene_000.jpg"},
		{ID: "f1", SceneID: "s1", Path: "frames/" + videoID + "/scene_001.jpg"},
	}
	storage.frameToVideo["f0"] = videoID
	storage.frameToVideo["f1"] = videoID
}

func discardLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestVisionCaptionsAllFramesUnderBoundedConcurrency(t *testing.T) {
	storage := newFakeStorage()
	const videoID = "v1"
	setUpFramesAwaitingCaption(storage, videoID)

	vision := &fakeVision{}
	deps := &Deps{
		Storage:             storage,
		Blob:                newFakeBlob(t.TempDir()),
		Vision:              vision,
		VisionMaxConcurrent: 1,
		Log:                 discardLogger(),
	}

	err := Vision(context.Background(), deps, &domain.Video{ID: videoID})
	require.NoError(t, err)

	require.Len(t, storage.captions[videoID], 2)
	require.Equal(t, 2, vision.calls)
}

func TestVisionSkipsFrameAfterExhaustingRetriesWithoutFailingStage(t *testing.T) {
	storage := newFakeStorage()
	const videoID = "v1"
	setUpFramesAwaitingCaption(storage, videoID)

	vision := &fakeVision{err: domain.Retryable(errors.New("upstream 503"))}
	deps := &Deps{
		Storage:             storage,
		Blob:                newFakeBlob(t.TempDir()),
		Vision:              vision,
		VisionMaxConcurrent: 5,
		Log:                 discardLogger(),
	}

	err := Vision(context.Background(), deps, &domain.Video{ID: videoID})
	require.NoError(t, err)
	require.Empty(t, storage.captions[videoID])
	require.Equal(t, (visionPerFrameRetries+1)*2, vision.calls)
}

func TestVisionGivesUpImmediatelyOnFatalSchemaError(t *testing.T) {
	storage := newFakeStorage()
	const videoID = "v1"
	setUpFramesAwaitingCaption(storage, videoID)

	vision := &fakeVision{err: domain.Fatal(errors.New("schema violation"))}
	deps := &Deps{
		Storage:             storage,
		Blob:                newFakeBlob(t.TempDir()),
		Vision:              vision,
		VisionMaxConcurrent: 5,
		Log:                 discardLogger(),
	}

	err := Vision(context.Background(), deps, &domain.Video{ID: videoID})
	require.NoError(t, err)
	require.Empty(t, storage.captions[videoID])
	require.Equal(t, 2, vision.calls) // one attempt per frame, no local retry
}
