package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/notify/metrics"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/kafka"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/circuit"
)

// producer is the slice of the broker client the publisher uses.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher delivers events to the broker. A circuit breaker guards the
// produce path: while open, events are logged instead of produced so a broker
// outage degrades to log-only delivery rather than a pile-up of timeouts.
type KafkaPublisher struct {
	producer producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type KafkaOption func(*KafkaPublisher)

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

func WithKafkaMetrics(m *metrics.Metrics) KafkaOption {
	return func(p *KafkaPublisher) {
		p.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(p *KafkaPublisher) {
		p.breaker = b
	}
}

func NewKafkaPublisher(client *kafka.Client, topic string, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: client,
		topic:    topic,
		breaker:  circuit.New("notify-kafka"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if !p.breaker.Allow() {
		p.logEvent(ctx, event, "event logged only; publisher circuit open")
		return nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Key),
		Value: value,
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.metrics.IncrementBreakerTransition(string(circuit.StateOpen))
			p.logger.WarnContext(ctx, "notification publisher circuit opened",
				slog.String("breaker", p.breaker.Name()))
		}
		return fmt.Errorf("produce event %s: %w", event.ID, err)
	}

	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.metrics.IncrementBreakerTransition(string(circuit.StateClosed))
		p.logger.InfoContext(ctx, "notification publisher circuit closed",
			slog.String("breaker", p.breaker.Name()))
	}
	return nil
}

func (p *KafkaPublisher) logEvent(ctx context.Context, event Event, msg string) {
	p.logger.InfoContext(ctx, msg,
		slog.String("event_type", event.Type.String()),
		slog.String("event_id", event.ID),
		slog.String("event_key", event.Key))
}
