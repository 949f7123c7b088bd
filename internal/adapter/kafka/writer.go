package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/dx-spot-relay/internal/domain"
	"github.com/couchcryptid/dx-spot-relay/internal/notify"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes alerts to a Kafka topic.
// It implements notify.Sink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a Kafka producer for the alert topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger, now: time.Now}
}

// Send publishes one alert record keyed by its dedup key, so every alert for
// the same station, band and mode lands on the same partition.
func (w *Writer) Send(ctx context.Context, alert notify.Alert) error {
	msg, err := serializeToMessage(alert, w.now())
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert %s: %w", msg.Key, err)
	}
	w.logger.Debug("alert published", "topic", w.writer.Topic, "key", string(msg.Key))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// AlertRecord is the JSON value of an alert message.
type AlertRecord struct {
	Key       string      `json:"key"`
	Text      string      `json:"text"`
	Spot      domain.Spot `json:"spot"`
	AlertedAt time.Time   `json:"alerted_at"`
}

// serializeToMessage marshals an alert into a Kafka message.
func serializeToMessage(alert notify.Alert, alertedAt time.Time) (kafkago.Message, error) {
	key := alert.Spot.DedupKey().String()
	data, err := json.Marshal(AlertRecord{
		Key:       key,
		Text:      alert.Text,
		Spot:      alert.Spot,
		AlertedAt: alertedAt.UTC(),
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "band", Value: []byte(alert.Spot.Band)},
			{Key: "mode", Value: []byte(alert.Spot.Mode)},
			{Key: "alerted_at", Value: []byte(alertedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
