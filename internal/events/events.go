// Package events carries pipeline notifications and remote ingest over kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"picbrand/internal/models"
	"picbrand/internal/watcher"
)

// batchTimeout keeps single-event writes from waiting for a full batch.
const batchTimeout = 10 * time.Millisecond

// Publisher emits pipeline events.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
	Close() error
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, models.Event) error { return nil }
func (Nop) Close() error                                { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

// NewPublisher returns a kafka publisher, or Nop when brokers is empty.
func NewPublisher(cfg models.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return Nop{}
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.EventsTopic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev models.Event) error {
	const op = "events.Publish"

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	msg := kafka.Message{Key: []byte(ev.Kind), Value: payload}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Ingest reads image paths from the ingest topic and hands them to sink.
// Paths without an image suffix are skipped.
type Ingest struct {
	reader messageReader
	sink   chan<- string
	logger *zap.Logger
}

// NewIngest returns nil when no brokers are configured.
func NewIngest(cfg models.KafkaConfig, sink chan<- string, logger *zap.Logger) *Ingest {
	if len(cfg.Brokers) == 0 || cfg.IngestTopic == "" {
		return nil
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.IngestTopic,
		GroupID: cfg.GroupID,
	})
	return newIngest(reader, sink, logger)
}

func newIngest(reader messageReader, sink chan<- string, logger *zap.Logger) *Ingest {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingest{reader: reader, sink: sink, logger: logger.With(zap.String("component", "ingest"))}
}

// Run consumes until ctx is cancelled. Read errors are logged and the loop
// continues.
func (in *Ingest) Run(ctx context.Context) {
	defer in.reader.Close()

	for {
		msg, err := in.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			in.logger.Error("error reading message", zap.Error(err))
			continue
		}
		path := strings.TrimSpace(string(msg.Value))
		if path == "" {
			continue
		}
		if !watcher.IsImagePath(path) {
			in.logger.Warn("ignoring non-image path", zap.String("path", path))
			continue
		}
		select {
		case in.sink <- path:
		case <-ctx.Done():
			return
		}
	}
}
