// Package notifier publishes applied design changes to Kafka so
// downstream consumers (the realtime transport, audit pipelines) can
// react.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/uxpulse/uxpulse/internal/bus"
	"github.com/uxpulse/uxpulse/internal/config"
	"github.com/uxpulse/uxpulse/internal/decision"
)

// Notifier writes design-change notifications to a Kafka topic.
type Notifier struct {
	writer *kafka.Writer
}

// New creates a notifier and subscribes it to design-change
// notifications. Returns nil when no brokers or topic are configured.
func New(cfg config.KafkaConfig, b *bus.Bus) *Notifier {
	topic, ok := cfg.Topics["changes"]
	if !ok || len(cfg.Brokers) == 0 {
		return nil
	}

	n := &Notifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			BatchSize:              1,
			BatchTimeout:           time.Millisecond * 10,
			Async:                  true, // never block the apply path
			AllowAutoTopicCreation: true,
		},
	}
	b.Subscribe(bus.DesignChanged, n.onChange)
	log.Info().Str("topic", topic).Msg("Kafka change notifier initialized")
	return n
}

func (n *Notifier) onChange(payload interface{}) {
	record, ok := payload.(decision.ChangeRecord)
	if !ok {
		return
	}

	msg := map[string]interface{}{
		"change_id":    record.ID,
		"timestamp":    record.Timestamp,
		"change_count": len(record.AppliedChanges),
		"theme":        record.Theme,
		"published_at": time.Now().UnixMilli(),
	}
	if record.Recommendations != nil {
		msg["priority"] = record.Recommendations.Priority
		msg["strategy"] = record.Recommendations.OverallStrategy
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal change notification")
		return
	}

	err = n.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(record.ID),
		Value: data,
	})
	if err != nil {
		log.Error().Err(err).Str("change_id", record.ID).Msg("Failed to publish change notification")
	}
}

// Close flushes and closes the writer.
func (n *Notifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}
