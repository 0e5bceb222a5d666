package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-lightning-bursts/internal/config"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

// Reader drains time-bin records from a Kafka topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader         *kafkago.Reader
	idleTimeout    time.Duration
	startupTimeout time.Duration
	started        bool
	logger         *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaSourceTopic,
		GroupID:     cfg.KafkaGroupID,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Reader{
		reader:         r,
		idleTimeout:    cfg.BatchFlushInterval,
		startupTimeout: cfg.KafkaStartupTimeout,
		logger:         logger,
	}
}

// ExtractBatch fetches up to batchSize messages. It returns early with what it
// has once no message arrives within the idle timeout, so an empty batch means
// the topic is drained. Before the first message the wait is bounded by the
// startup timeout instead, leaving the consumer group time to join.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	batch := make([]domain.RawEvent, 0, batchSize)
	for len(batch) < batchSize {
		wait := r.idleTimeout
		if !r.started {
			wait = r.startupTimeout
		}
		fetchCtx, cancel := context.WithTimeout(ctx, wait)
		msg, err := r.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				if !r.started {
					r.logger.Warn("no messages before startup timeout", "topic", r.reader.Config().Topic, "timeout", wait)
				}
				return batch, nil
			}
			return batch, err
		}
		r.started = true
		raw := mapMessageToRawEvent(msg)
		raw.Commit = func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		}
		batch = append(batch, raw)
	}
	return batch, nil
}

// Close closes the underlying consumer.
func (r *Reader) Close() error {
	return r.reader.Close()
}

func mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
