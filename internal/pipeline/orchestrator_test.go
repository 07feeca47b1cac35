package pipeline

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
)

func newTestDeps(storage *fakeStorage, blobStore *fakeBlob, sceneDetector fakeSceneDetector) *Deps {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return &Deps{
		Storage:        storage,
		Blob:           blobStore,
		Transcoder:     fakeTranscoder{},
		SceneDetector:  sceneDetector,
		FrameExtractor: fakeFrameExtractor{},
		Hasher:         fakeHasher{},
		Transcriber: fakeTranscriber{chunks: []gateway.TranscriptChunk{
			{TStart: 0, TEnd: 5, Text: "hello"},
			{TStart: 5, TEnd: 10, Text: "world"},
		}},
		Vision:   &fakeVision{},
		Embedder: fakeEmbedder{},

		MaxFramesPerVideo:   50,
		VisionMaxConcurrent: 5,

		EnableTranscription:  true,
		EnableVisionAnalysis: true,
		EnableEmbeddings:     true,

		Log: logrus.NewEntry(log),
	}
}

func setUpVideo(t *testing.T, storage *fakeStorage) (*fakeBlob, string) {
	t.Helper()
	const videoID = "v1"
	const originalPath = "uploads/v1_source.mp4"

	blobStore := newFakeBlob(t.TempDir())
	blobStore.markPresent(originalPath)

	storage.videos[videoID] = &domain.Video{ID: videoID, OriginalPath: originalPath, Status: domain.VideoUploaded}
	return blobStore, videoID
}

func TestOrchestratorRunsAllStagesToReady(t *testing.T) {
	storage := newFakeStorage()
	blobStore, videoID := setUpVideo(t, storage)

	deps := newTestDeps(storage, blobStore, fakeSceneDetector{intervals: []gateway.SceneInterval{
		{TStart: 0, TEnd: 15},
		{TStart: 15, TEnd: 30},
	}})

	orch := NewOrchestrator(deps)
	err := orch.Run(context.Background(), &gateway.ClaimedJob{JobID: "job1", VideoID: videoID, Attempts: 1})
	require.NoError(t, err)

	require.NotNil(t, storage.videos[videoID].NormalizedPath)
	require.Len(t, storage.scenes[videoID], 2)
	require.NotEmpty(t, storage.frames[videoID])
	require.Len(t, storage.segments[videoID], 2)
	require.NotEmpty(t, storage.captions[videoID])

	for _, seg := range storage.segments[videoID] {
		require.NotNil(t, seg.Embedding)
	}
	for _, capt := range storage.captions[videoID] {
		require.NotNil(t, capt.Embedding)
	}
}

func TestOrchestratorIsIdempotentOnRerun(t *testing.T) {
	storage := newFakeStorage()
	blobStore, videoID := setUpVideo(t, storage)

	deps := newTestDeps(storage, blobStore, fakeSceneDetector{intervals: []gateway.SceneInterval{
		{TStart: 0, TEnd: 15},
		{TStart: 15, TEnd: 30},
	}})
	orch := NewOrchestrator(deps)

	require.NoError(t, orch.Run(context.Background(), &gateway.ClaimedJob{JobID: "job1", VideoID: videoID}))
	firstFrameCount := len(storage.frames[videoID])
	firstSegmentCount := len(storage.segments[videoID])

	require.NoError(t, orch.Run(context.Background(), &gateway.ClaimedJob{JobID: "job2", VideoID: videoID}))

	require.Equal(t, firstFrameCount, len(storage.frames[videoID]))
	require.Equal(t, firstSegmentCount, len(storage.segments[videoID]))
}

func TestOrchestratorFatalErrorOnMissingVideo(t *testing.T) {
	storage := newFakeStorage()
	blobStore := newFakeBlob(t.TempDir())
	deps := newTestDeps(storage, blobStore, fakeSceneDetector{})

	orch := NewOrchestrator(deps)
	err := orch.Run(context.Background(), &gateway.ClaimedJob{JobID: "job1", VideoID: "missing"})

	require.Error(t, err)
	require.True(t, domain.IsFatal(err))
}

func TestOrchestratorFatalErrorOnMissingInputFile(t *testing.T) {
	storage := newFakeStorage()
	blobStore := newFakeBlob(t.TempDir())
	storage.videos["v1"] = &domain.Video{ID: "v1", OriginalPath: "uploads/v1_source.mp4", Status: domain.VideoUploaded}

	deps := newTestDeps(storage, blobStore, fakeSceneDetector{})
	orch := NewOrchestrator(deps)

	err := orch.Run(context.Background(), &gateway.ClaimedJob{JobID: "job1", VideoID: "v1"})

	require.Error(t, err)
	require.True(t, domain.IsFatal(err))
}
