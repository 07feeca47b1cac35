// Package queue implements the optional poll-hint consumer (addition J):
// a best-effort notification that a job became available, used only to
// shorten the controller's backoff sleep. Grounded on the teacher's
// pkg/kafka.Client.Reader wiring.
package queue

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// HintConsumer reads poll-hint messages and forwards a signal on Hints()
// each time one arrives. The controller's correctness never depends on a
// hint arriving — plain polling alone satisfies every invariant of the
// claim loop.
type HintConsumer struct {
	reader *kafka.Reader
	log    logrus.FieldLogger
	hints  chan struct{}
}

func NewHintConsumer(brokers []string, topic string, log logrus.FieldLogger) *HintConsumer {
	return &HintConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  "video-worker-hints",
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 1 << 16,
		}),
		log:   log,
		hints: make(chan struct{}, 1),
	}
}

// Hints returns the channel the controller selects on alongside its
// backoff timer. It is buffered so a hint that arrives while the
// controller is busy processing a job is not lost, but also never backs
// up beyond one pending hint.
func (c *HintConsumer) Hints() <-chan struct{} {
	return c.hints
}

// Run consumes until ctx is cancelled. Read errors are logged and retried;
// this consumer is an optimization, not a correctness dependency, so it
// never takes the process down.
func (c *HintConsumer) Run(ctx context.Context) {
	for {
		_, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.WithError(err).Warn("poll hint consumer read failed, continuing")
			continue
		}
		select {
		case c.hints <- struct{}{}:
		default:
		}
	}
}

func (c *HintConsumer) Close() error {
	return c.reader.Close()
}
