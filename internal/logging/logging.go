// Package logging wires up the structured logger every component in the
// worker shares: logrus, with a rotated file target sized per §6's
// "worker/log.log (rotating, 5MB x 3)" and an optional JSON or text
// formatter.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"video-worker/internal/config"
)

// New builds the base logger for the process. Output "stdout" writes to
// the console; anything else is treated as a rotating file path.
func New(cfg *config.Config) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.LogFormat == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	l.SetOutput(outputFor(cfg))
	return l
}

func outputFor(cfg *config.Config) io.Writer {
	if cfg.LogOutput == "" || cfg.LogOutput == "stdout" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogOutput,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   false,
	}
}

// Milestone logs one of the §6 named pipeline checkpoints
// (CLAIMED/NORMALIZED/TRANSCRIBED/SCENES/FRAMES/VISION/EMBEDDINGS/READY/FAILED)
// as a single structured line, tagged with the job and video it belongs to.
func Milestone(log logrus.FieldLogger, jobID, videoID, milestone string) {
	log.WithFields(logrus.Fields{
		"job_id":    jobID,
		"video_id":  videoID,
		"milestone": milestone,
	}).Info(milestone)
}
