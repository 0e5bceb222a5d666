//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/storm-lightning-bursts/internal/adapter/csvfile"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("lightning-bursts-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// loadMockData reads the pipeline test table as raw JSON records.
func loadMockData(t *testing.T) []domain.RawEvent {
	t.Helper()
	src, err := csvfile.Open(filepath.Join("..", "pipeline", "testdata", "timebins.csv"), discardLogger())
	require.NoError(t, err)
	defer src.Close()

	batch, err := src.ExtractBatch(context.Background(), 1000)
	require.NoError(t, err)
	require.NotEmpty(t, batch)
	return batch
}

// publish writes raw records to topic keyed by storm code.
func publish(ctx context.Context, t *testing.T, broker, topic string, records []domain.RawEvent) {
	t.Helper()
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: topic,
	}
	defer producer.Close()

	baseDate := time.Date(2022, time.September, 20, 0, 0, 0, 0, time.UTC)
	msgs := make([]kafkago.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, kafkago.Message{Key: r.Key, Value: r.Value, Time: baseDate})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
}

// readN reads n messages from a fresh consumer group on topic.
func readN(ctx context.Context, t *testing.T, broker, topic string, n int) []kafkago.Message {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     "verify-" + strconv.FormatInt(time.Now().UnixNano(), 10),
		StartOffset: kafkago.FirstOffset,
	})
	defer consumer.Close()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := make([]kafkago.Message, 0, n)
	for len(out) < n {
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read message %d of %d from %s", len(out)+1, n, topic)
		out = append(out, msg)
	}
	return out
}

func headerMap(msg kafkago.Message) map[string]string {
	h := make(map[string]string, len(msg.Headers))
	for _, kv := range msg.Headers {
		h[kv.Key] = string(kv.Value)
	}
	return h
}
