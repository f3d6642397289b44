package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/notify/metrics"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

const (
	defaultQueueSize = 256

	// publishTimeout bounds a single delivery attempt so one slow broker
	// call cannot back the queue up indefinitely.
	publishTimeout = 5 * time.Second
)

// Publisher delivers one event to the sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Dispatcher queues events for asynchronous delivery. Emit never blocks:
// when the queue is full the event is dropped and counted.
type Dispatcher struct {
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	inbox     chan Event
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithQueueSize sets the bounded queue capacity.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.inbox = make(chan Event, n)
		}
	}
}

func NewDispatcher(publisher Publisher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		publisher: publisher,
		logger:    slog.Default(),
		inbox:     make(chan Event, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Emit marshals the payload and enqueues the event. Failures are logged and
// counted, never returned: the emitting operation has already committed.
func (d *Dispatcher) Emit(ctx context.Context, eventType EventType, key string, payload any) {
	if !eventType.IsValid() {
		d.metrics.IncrementDropped()
		d.logger.WarnContext(ctx, "dropping event of unknown type",
			slog.String("event_type", eventType.String()))
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		d.metrics.IncrementDropped()
		d.logger.WarnContext(ctx, "dropping event with unmarshalable payload",
			slog.String("event_type", eventType.String()),
			slog.String("error", err.Error()))
		return
	}

	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: requestcontext.Now(ctx),
		Payload:    raw,
	}

	select {
	case d.inbox <- event:
		d.metrics.IncrementEmitted(eventType.String())
	default:
		d.metrics.IncrementDropped()
		d.logger.WarnContext(ctx, "dropping event; dispatch queue full",
			slog.String("event_type", eventType.String()),
			slog.String("event_id", event.ID))
	}
}

// Run consumes the queue until ctx is canceled. Publish errors are logged
// and counted; the loop keeps going.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-d.inbox:
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := d.publisher.Publish(publishCtx, event); err != nil {
		d.metrics.IncrementPublishFailure()
		d.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event_type", event.Type.String()),
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
	}
}
