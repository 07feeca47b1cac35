// Package app constructs every collaborator of the running process and
// wires them together: config, logging, the storage gateway, the media
// primitive adapters, the pipeline orchestrator and the job controller,
// plus the optional ambient pieces (blob backend, stats cache, poll-hint
// consumer, worker registry, profiling, health HTTP server). Nothing here
// is itself business logic — it is the same construct-once-and-inject
// shape the teacher's Run() uses, generalized to this domain's dependency
// graph.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"video-worker/internal/blob"
	"video-worker/internal/cache"
	"video-worker/internal/config"
	"video-worker/internal/gateway"
	"video-worker/internal/httpapi"
	"video-worker/internal/logging"
	"video-worker/internal/media"
	"video-worker/internal/pipeline"
	"video-worker/internal/profiling"
	"video-worker/internal/queue"
	"video-worker/internal/registry"
	"video-worker/internal/store"
	"video-worker/internal/worker"
)

// Run loads configuration, constructs every collaborator and runs the job
// controller until a SIGINT/SIGTERM is received, then drains in-flight
// work before returning. A non-nil return means the process should exit
// non-zero.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg)
	log.Infof("video-worker starting data_dir=%s poll_ms=%d", cfg.DataDir, cfg.WorkerPollInterval.Milliseconds())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopProfiling, err := startProfiling(cfg)
	if err != nil {
		log.WithError(err).Warn("continuous profiling failed to start, continuing without it")
	} else if stopProfiling != nil {
		defer stopProfiling()
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open storage gateway: %w", err)
	}
	storageGateway := store.New(db)

	blobStore, err := newBlobStore(cfg)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	deps := buildPipelineDeps(cfg, storageGateway, blobStore, log)
	orchestrator := pipeline.NewOrchestrator(deps)

	hints, stopHints := startHintConsumer(ctx, cfg, log)
	if stopHints != nil {
		defer stopHints()
	}

	stopWorkerRegistry := registerWorker(ctx, cfg, log)
	if stopWorkerRegistry != nil {
		defer stopWorkerRegistry()
	}

	controller := &worker.Controller{
		Storage:      storageGateway,
		Orchestrator: orchestrator,
		PollInterval: cfg.WorkerPollInterval,
		MaxAttempts:  cfg.WorkerMaxAttempts,
		Hints:        hints,
		Log:          log,
	}

	if cfg.DevHTTP {
		go serveHealthView(ctx, cfg, storageGateway, log)
	}

	if err := controller.Run(ctx); err != nil {
		return fmt.Errorf("job controller: %w", err)
	}

	log.Info("video-worker shut down cleanly")
	return nil
}

func buildPipelineDeps(cfg *config.Config, storageGateway gateway.Storage, blobStore blob.Store, log logrus.FieldLogger) *pipeline.Deps {
	return &pipeline.Deps{
		Storage:        storageGateway,
		Blob:           blobStore,
		Transcoder:     &media.FFmpegTranscoder{FFmpegPath: cfg.FFmpegBinaryPath, FFprobePath: cfg.FFprobeBinaryPath},
		SceneDetector:  &media.FFmpegSceneDetector{FFmpegPath: cfg.FFmpegBinaryPath, FFprobePath: cfg.FFprobeBinaryPath},
		FrameExtractor: &media.FFmpegFrameExtractor{FFmpegPath: cfg.FFmpegBinaryPath},
		Hasher:         media.DHasher{},
		Transcriber:    media.NewOpenAITranscriber(cfg.TranscribeAPIBaseURL, cfg.OpenAIAPIKey),
		Vision:         media.NewOpenAIVisionCaptioner(cfg.VisionAPIBaseURL, cfg.OpenAIAPIKey),
		Embedder:       media.NewOpenAIEmbedder(cfg.EmbeddingsAPIBaseURL, cfg.OpenAIAPIKey),

		MaxFramesPerVideo:   cfg.MaxFramesPerVideo,
		VisionMaxConcurrent: cfg.VisionMaxConcurrent,

		EnableTranscription:  cfg.EnableTranscription,
		EnableVisionAnalysis: cfg.EnableVisionAnalysis,
		EnableEmbeddings:     cfg.EnableEmbeddings,

		Log: log,
	}
}

// newBlobStore selects the §6 path-layout backend named by
// cfg.BlobBackend: the local filesystem by default, or a MinIO/S3-compatible
// bucket (addition L) when configured.
func newBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case "", "filesystem":
		return &blob.Local{DataDir: cfg.DataDir}, nil
	case "s3":
		return blob.NewS3(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL, cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown blob_backend %q", cfg.BlobBackend)
	}
}

// startHintConsumer wires the optional Kafka poll-hint consumer (addition
// J). It returns a nil channel and a nil stop function when Kafka is not
// configured — the controller treats a nil Hints channel identically to
// one that simply never fires.
func startHintConsumer(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (<-chan struct{}, func()) {
	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaJobHintTopic == "" {
		return nil, nil
	}
	consumer := queue.NewHintConsumer(cfg.KafkaBrokers, cfg.KafkaJobHintTopic, log)
	go consumer.Run(ctx)
	return consumer.Hints(), func() {
		if err := consumer.Close(); err != nil {
			log.WithError(err).Warn("poll hint consumer close failed")
		}
	}
}

// registerWorker wires the optional etcd worker registry (addition K),
// purely for operator visibility — nothing in the claim loop depends on
// this succeeding.
func registerWorker(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) func() {
	if len(cfg.EtcdEndpoints) == 0 {
		return nil
	}
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = uuid.NewString()
	}

	reg, err := registry.NewWorkerRegistry(cfg.EtcdEndpoints, workerID)
	if err != nil {
		log.WithError(err).Warn("worker registry unavailable, continuing unregistered")
		return nil
	}
	if err := reg.Register(ctx); err != nil {
		log.WithError(err).Warn("worker registry registration failed, continuing unregistered")
		return nil
	}
	log.WithField("worker_id", workerID).Info("registered worker in etcd")

	return func() {
		deregisterCtx, cancel := context.WithTimeout(context.Background(), shutdownDeregisterTimeout)
		defer cancel()
		if err := reg.Deregister(deregisterCtx); err != nil {
			log.WithError(err).Warn("worker registry deregistration failed")
		}
	}
}

func startProfiling(cfg *config.Config) (func() error, error) {
	if !cfg.EnableProfiling {
		return nil, nil
	}
	return profiling.Start("video-worker", cfg.ProfilingServerAddress)
}

// serveHealthView runs the optional read-only HTTP surface of §6 until ctx
// is cancelled. It is deliberately never load-bearing for the claim loop:
// a failure here is logged, not propagated.
func serveHealthView(ctx context.Context, cfg *config.Config, storageGateway gateway.Storage, log logrus.FieldLogger) {
	var statsCache *cache.StatsCache
	if cfg.RedisURL != "" {
		sc, err := cache.NewStatsCache(cfg.RedisURL, cfg.StatsCacheTTL)
		if err != nil {
			log.WithError(err).Warn("stats cache unavailable, serving /stats uncached")
		} else {
			statsCache = sc
			defer sc.Close()
		}
	}

	srv := &httpapi.Server{Storage: storageGateway, StatsCache: statsCache}
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	log.WithField("addr", addr).Info("health view HTTP server starting")

	if err := httpapi.Run(ctx, addr, srv.Engine()); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("health view HTTP server exited with error")
	}
}

const shutdownDeregisterTimeout = 5 * time.Second
