// Package config loads the worker's configuration from the environment,
// following the teacher's Viper-with-defaults pattern, but flat rather
// than nested: every option is a single environment variable, per §6.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved, validated set of options the process needs
// to start. Required fields have no default and Load fails if they are
// absent.
type Config struct {
	DatabaseURL string
	OpenAIAPIKey string
	DataDir     string

	WorkerPollInterval time.Duration
	WorkerMaxAttempts  int
	LogLevel           string

	MaxFramesPerVideo   int
	VisionMaxConcurrent int

	EnableTranscription  bool
	EnableVisionAnalysis bool
	EnableEmbeddings     bool

	DevHTTP  bool
	HTTPPort int

	RedisURL         string
	StatsCacheTTL    time.Duration

	KafkaBrokers      []string
	KafkaJobHintTopic string

	EtcdEndpoints []string
	WorkerID      string

	BlobBackend  string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3UseSSL     bool

	EnableProfiling         bool
	ProfilingServerAddress string

	LogFormat     string
	LogOutput     string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	VisionAPIBaseURL     string
	TranscribeAPIBaseURL string
	EmbeddingsAPIBaseURL string

	FFmpegBinaryPath  string
	FFprobeBinaryPath string
}

// Load reads every option from the environment, applying the defaults
// enumerated in §6 and failing fast if a required option is missing.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", "/app/data")
	v.SetDefault("worker_poll_ms", 1500)
	v.SetDefault("worker_max_attempts", 3)
	v.SetDefault("log_level", "INFO")
	v.SetDefault("max_frames_per_video", 50)
	v.SetDefault("vision_max_concurrent", 5)
	v.SetDefault("enable_transcription", true)
	v.SetDefault("enable_vision_analysis", true)
	v.SetDefault("enable_embeddings", true)
	v.SetDefault("worker_dev_http", false)
	v.SetDefault("worker_http_port", 8000)

	v.SetDefault("stats_cache_ttl_ms", 2000)
	v.SetDefault("blob_backend", "filesystem")
	v.SetDefault("s3_use_ssl", true)
	v.SetDefault("enable_profiling", false)
	v.SetDefault("log_format", "json")
	v.SetDefault("log_output", "worker/log.log")
	v.SetDefault("log_max_size_mb", 5)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("log_max_age_days", 28)
	v.SetDefault("vision_api_base_url", "https://api.openai.com/v1")
	v.SetDefault("transcribe_api_base_url", "https://api.openai.com/v1")
	v.SetDefault("embeddings_api_base_url", "https://api.openai.com/v1")
	v.SetDefault("ffmpeg_binary_path", "ffmpeg")
	v.SetDefault("ffprobe_binary_path", "ffprobe")

	cfg := &Config{
		DatabaseURL:  v.GetString("database_url"),
		OpenAIAPIKey: v.GetString("openai_api_key"),
		DataDir:      v.GetString("data_dir"),

		WorkerPollInterval: time.Duration(v.GetInt("worker_poll_ms")) * time.Millisecond,
		WorkerMaxAttempts:  v.GetInt("worker_max_attempts"),
		LogLevel:           v.GetString("log_level"),

		MaxFramesPerVideo:   v.GetInt("max_frames_per_video"),
		VisionMaxConcurrent: v.GetInt("vision_max_concurrent"),

		EnableTranscription:  v.GetBool("enable_transcription"),
		EnableVisionAnalysis: v.GetBool("enable_vision_analysis"),
		EnableEmbeddings:     v.GetBool("enable_embeddings"),

		DevHTTP:  v.GetBool("worker_dev_http"),
		HTTPPort: v.GetInt("worker_http_port"),

		RedisURL:      v.GetString("redis_url"),
		StatsCacheTTL: time.Duration(v.GetInt("stats_cache_ttl_ms")) * time.Millisecond,

		KafkaBrokers:      splitCSV(v.GetString("kafka_brokers")),
		KafkaJobHintTopic: v.GetString("kafka_job_hint_topic"),

		EtcdEndpoints: splitCSV(v.GetString("etcd_endpoints")),
		WorkerID:      v.GetString("worker_id"),

		BlobBackend: v.GetString("blob_backend"),
		S3Endpoint:  v.GetString("s3_endpoint"),
		S3AccessKey: v.GetString("s3_access_key"),
		S3SecretKey: v.GetString("s3_secret_key"),
		S3Bucket:    v.GetString("s3_bucket"),
		S3UseSSL:    v.GetBool("s3_use_ssl"),

		EnableProfiling:        v.GetBool("enable_profiling"),
		ProfilingServerAddress: v.GetString("profiling_server_address"),

		LogFormat:     v.GetString("log_format"),
		LogOutput:     v.GetString("log_output"),
		LogMaxSizeMB:  v.GetInt("log_max_size_mb"),
		LogMaxBackups: v.GetInt("log_max_backups"),
		LogMaxAgeDays: v.GetInt("log_max_age_days"),

		VisionAPIBaseURL:     v.GetString("vision_api_base_url"),
		TranscribeAPIBaseURL: v.GetString("transcribe_api_base_url"),
		EmbeddingsAPIBaseURL: v.GetString("embeddings_api_base_url"),

		FFmpegBinaryPath:  v.GetString("ffmpeg_binary_path"),
		FFprobeBinaryPath: v.GetString("ffprobe_binary_path"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: database_url is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("config: openai_api_key is required")
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
