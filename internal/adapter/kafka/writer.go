package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-lightning-bursts/internal/analysis"
	"github.com/couchcryptid/storm-lightning-bursts/internal/config"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
	"github.com/couchcryptid/storm-lightning-bursts/internal/observability"
)

// Record types carried in the record_type header.
const (
	RecordDetection     = "detection"
	RecordEntitySummary = "entity_summary"
	RecordGroupSummary  = "group_summary"
)

// Writer publishes report records to a Kafka topic.
// It implements pipeline.ReportLoader.
type Writer struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, metrics: metrics, logger: logger}
}

// LoadReport publishes every detection, storm summary and group summary of
// the report in a single WriteMessages call. Storm records are keyed by storm
// code so one storm's records land on one partition.
func (w *Writer) LoadReport(ctx context.Context, report *analysis.Report) error {
	events, err := ReportEvents(report)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i, e := range events {
		msgs[i] = toMessage(e)
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish report %s: %w", report.RunID, err)
	}
	w.metrics.MessagesProduced.Add(float64(len(msgs)))
	w.logger.Info("report published", "run_id", report.RunID, "messages", len(msgs), "topic", w.writer.Topic)
	return nil
}

// Close flushes and closes the producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// ReportEvents serializes a report into output events with headers.
func ReportEvents(report *analysis.Report) ([]domain.OutputEvent, error) {
	base := map[string]string{
		"run_id":       report.RunID,
		"generated_at": report.GeneratedAt.Format(time.RFC3339),
	}

	events := make([]domain.OutputEvent, 0, len(report.Detections)+len(report.Groups))
	for _, d := range report.Detections {
		e, err := newEvent(d.EntityID, d, base, RecordDetection, d.Basin, "")
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	for _, g := range report.Groups {
		for _, s := range g.EntitySummaries {
			e, err := newEvent(s.EntityID, s, base, RecordEntitySummary, g.Basin, g.CategoryGroup)
			if err != nil {
				return nil, err
			}
			events = append(events, e)
		}
		e, err := newEvent(fmt.Sprintf("%s/%s", g.Basin, g.CategoryGroup), g.Summary, base, RecordGroupSummary, g.Basin, g.CategoryGroup)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func newEvent(key string, v any, base map[string]string, recordType string, basin domain.Basin, group domain.CategoryGroup) (domain.OutputEvent, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("serialize %s %s: %w", recordType, key, err)
	}
	headers := make(map[string]string, len(base)+3)
	maps.Copy(headers, base)
	headers["record_type"] = recordType
	headers["basin"] = string(basin)
	if group != "" {
		headers["category_group"] = string(group)
	}
	return domain.OutputEvent{Key: []byte(key), Value: data, Headers: headers}, nil
}

// headerOrder fixes the order headers are written in.
var headerOrder = []string{"record_type", "run_id", "basin", "category_group", "generated_at"}

func toMessage(e domain.OutputEvent) kafkago.Message {
	headers := make([]kafkago.Header, 0, len(e.Headers))
	for _, k := range headerOrder {
		if v, ok := e.Headers[k]; ok {
			headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
		}
	}
	return kafkago.Message{Key: e.Key, Value: e.Value, Headers: headers}
}
