// Package kafka publishes advisory changes to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// ChangeEvent is the message body published for each changed advisory.
type ChangeEvent struct {
	CountryCode      string `json:"country_code"`
	PublishedOn      string `json:"published_on"`
	PriorPublishedOn string `json:"prior_published_on,omitempty"`
	ThreatLevel      string `json:"threat_level"`
	ThreatNumber     int    `json:"threat_number"`
}

// Writer publishes changed advisories. It implements pipeline.ChangePublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one message per changed record in a single WriteMessages
// call. Unchanged records are skipped.
func (w *Writer) Publish(ctx context.Context, records []domain.Reconciled) error {
	msgs := make([]kafkago.Message, 0, len(records))
	for _, r := range records {
		if !r.Changed {
			continue
		}
		msg, err := serializeToMessage(r)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish changes: %w", err)
	}
	w.logger.Debug("changes published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage keys the message by country code so every change for a
// country lands on the same partition.
func serializeToMessage(r domain.Reconciled) (kafkago.Message, error) {
	ev := ChangeEvent{
		CountryCode:  r.CountryCode,
		PublishedOn:  r.PublishedOn.Format(domain.DateLayout),
		ThreatLevel:  r.ThreatLevel,
		ThreatNumber: r.ThreatNumber,
	}
	if !r.PriorPublishedOn.IsZero() {
		ev.PriorPublishedOn = r.PriorPublishedOn.Format(domain.DateLayout)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize change %s: %w", r.CountryCode, err)
	}
	return kafkago.Message{
		Key:   []byte(r.CountryCode),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "threat_number", Value: []byte(strconv.Itoa(r.ThreatNumber))},
			{Key: "published_on", Value: []byte(ev.PublishedOn)},
		},
	}, nil
}
