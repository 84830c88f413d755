// Package consumer pulls telemetry events from Kafka and feeds them
// to the controller.
package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/uxpulse/uxpulse/internal/config"
	"github.com/uxpulse/uxpulse/internal/telemetry"
)

// EventRecorder receives decoded telemetry events.
type EventRecorder interface {
	RecordInteraction(ev telemetry.InteractionEvent)
	RecordEngagement(ev telemetry.EngagementEvent)
	RecordPerformance(m telemetry.PerformanceMetric)
}

// KafkaConsumer consumes event envelopes from Kafka.
type KafkaConsumer struct {
	reader   *kafka.Reader
	recorder EventRecorder
}

// NewKafkaConsumer creates a consumer for the events topic.
func NewKafkaConsumer(cfg config.KafkaConfig, recorder EventRecorder) *KafkaConsumer {
	topic := cfg.Topics["events"]
	if topic == "" {
		topic = "uxpulse.events.raw"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1e3,  // 1KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return &KafkaConsumer{
		reader:   reader,
		recorder: recorder,
	}
}

// Start consumes until ctx is canceled. Malformed messages are logged
// and committed so the consumer never gets stuck.
func (c *KafkaConsumer) Start(ctx context.Context) {
	log.Info().
		Str("topic", c.reader.Config().Topic).
		Str("group", c.reader.Config().GroupID).
		Msg("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Kafka consumer stopped")
			return
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Msg("Failed to fetch message")
				continue
			}

			var envelope map[string]interface{}
			if err := json.Unmarshal(msg.Value, &envelope); err != nil {
				log.Error().Err(err).Str("value", string(msg.Value)).Msg("Failed to parse message")
			} else {
				Dispatch(c.recorder, envelope)
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				log.Error().Err(err).Msg("Failed to commit message")
			}
		}
	}
}

// Close closes the underlying reader.
func (c *KafkaConsumer) Close() error {
	log.Info().Msg("Closing Kafka consumer")
	return c.reader.Close()
}

// Dispatch routes one decoded envelope by its kind field.
func Dispatch(recorder EventRecorder, envelope map[string]interface{}) {
	kind, _ := envelope["kind"].(string)
	switch kind {
	case "interaction":
		recorder.RecordInteraction(ParseInteraction(envelope))
	case "engagement":
		recorder.RecordEngagement(ParseEngagement(envelope))
	case "performance":
		recorder.RecordPerformance(ParsePerformance(envelope))
	default:
		log.Warn().Str("kind", kind).Msg("Unknown event kind")
	}
}

// ParseInteraction decodes an interaction envelope.
func ParseInteraction(raw map[string]interface{}) telemetry.InteractionEvent {
	ev := telemetry.InteractionEvent{
		UserID:    str(raw, "user_id"),
		SessionID: str(raw, "session_id"),
		Type:      str(raw, "type"),
		Target:    str(raw, "target"),
		Page:      str(raw, "page"),
		Device:    str(raw, "device"),
		X:         num(raw, "x"),
		Y:         num(raw, "y"),
		Timestamp: timestamp(raw),
	}
	if ev.SessionID == "" {
		ev.SessionID = uuid.New().String()
	}
	if viewport, ok := raw["viewport"].(map[string]interface{}); ok {
		ev.Viewport.Width = num(viewport, "width")
		ev.Viewport.Height = num(viewport, "height")
	}
	return ev
}

// ParseEngagement decodes an engagement envelope.
func ParseEngagement(raw map[string]interface{}) telemetry.EngagementEvent {
	return telemetry.EngagementEvent{
		UserID:     str(raw, "user_id"),
		Type:       str(raw, "type"),
		TargetID:   str(raw, "target_id"),
		TargetType: str(raw, "target_type"),
		Sentiment:  str(raw, "sentiment"),
		Timestamp:  timestamp(raw),
	}
}

// ParsePerformance decodes a performance envelope.
func ParsePerformance(raw map[string]interface{}) telemetry.PerformanceMetric {
	return telemetry.PerformanceMetric{
		UserID:     str(raw, "user_id"),
		Page:       str(raw, "page"),
		LoadTime:   fnum(raw, "load_time"),
		FCP:        fnum(raw, "fcp"),
		LCP:        fnum(raw, "lcp"),
		FID:        fnum(raw, "fid"),
		CLS:        fnum(raw, "cls"),
		TTFB:       fnum(raw, "ttfb"),
		Device:     str(raw, "device"),
		Connection: str(raw, "connection"),
		Timestamp:  timestamp(raw),
	}
}

func str(raw map[string]interface{}, key string) string {
	v, _ := raw[key].(string)
	return v
}

func num(raw map[string]interface{}, key string) int {
	if v, ok := raw[key].(float64); ok {
		return int(v)
	}
	return 0
}

func fnum(raw map[string]interface{}, key string) float64 {
	v, _ := raw[key].(float64)
	return v
}

func timestamp(raw map[string]interface{}) time.Time {
	if v, ok := raw["timestamp"].(float64); ok && v > 0 {
		return time.UnixMilli(int64(v))
	}
	return time.Now()
}
