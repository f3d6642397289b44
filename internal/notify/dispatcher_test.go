package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/logger"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

// capturePublisher records published events and can be told to fail.
type capturePublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
	sawAny chan struct{}
	once   sync.Once
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{sawAny: make(chan struct{})}
}

func (p *capturePublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	p.once.Do(func() { close(p.sawAny) })
	return nil
}

func (p *capturePublisher) captured() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

func TestDispatcher_EmitDelivers(t *testing.T) {
	publisher := newCapturePublisher()
	dispatcher := NewDispatcher(publisher, WithLogger(logger.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Run(ctx)
	}()

	emittedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	emitCtx := requestcontext.WithTime(context.Background(), emittedAt)
	dispatcher.Emit(emitCtx, EventFormPendingReview, "form-1", FormPendingReviewPayload{
		FormID: "form-1",
		Title:  "Name Change Petition",
	})

	select {
	case <-publisher.sawAny:
	case <-time.After(2 * time.Second):
		t.Fatal("event was never delivered")
	}
	cancel()
	<-done

	events := publisher.captured()
	require.Len(t, events, 1)
	assert.Equal(t, EventFormPendingReview, events[0].Type)
	assert.Equal(t, "form-1", events[0].Key)
	assert.Equal(t, emittedAt, events[0].OccurredAt)
	assert.NotEmpty(t, events[0].ID)
	assert.JSONEq(t,
		`{"form_id":"form-1","contributor_id":"","jurisdiction_id":"","title":"Name Change Petition","version":0}`,
		string(events[0].Payload))
}

func TestDispatcher_FullQueueDropsWithoutBlocking(t *testing.T) {
	// No consumer running: the queue holds exactly one event, the rest drop.
	dispatcher := NewDispatcher(newCapturePublisher(), WithLogger(logger.Discard()), WithQueueSize(1))

	ctx := context.Background()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 10; i++ {
			dispatcher.Emit(ctx, EventRewardGranted, "contrib-1", RewardGrantedPayload{WeeksGranted: 1})
		}
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full queue")
	}
	assert.Len(t, dispatcher.inbox, 1)
}

func TestDispatcher_UnknownTypeDropped(t *testing.T) {
	dispatcher := NewDispatcher(newCapturePublisher(), WithLogger(logger.Discard()))

	dispatcher.Emit(context.Background(), EventType("made_up"), "k", nil)

	assert.Len(t, dispatcher.inbox, 0)
}

func TestDispatcher_UnmarshalablePayloadDropped(t *testing.T) {
	dispatcher := NewDispatcher(newCapturePublisher(), WithLogger(logger.Discard()))

	dispatcher.Emit(context.Background(), EventTrendingIssue, "form-1", func() {})

	assert.Len(t, dispatcher.inbox, 0)
}

func TestDispatcher_PublishFailureDoesNotStopLoop(t *testing.T) {
	publisher := newCapturePublisher()
	publisher.err = assert.AnError
	dispatcher := NewDispatcher(publisher, WithLogger(logger.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Run(ctx)
	}()

	dispatcher.Emit(ctx, EventFormReviewed, "form-1", FormReviewedPayload{Decision: "approve"})

	// Heal the publisher; the loop must still be consuming.
	time.Sleep(50 * time.Millisecond)
	publisher.mu.Lock()
	publisher.err = nil
	publisher.mu.Unlock()

	dispatcher.Emit(ctx, EventFormReviewed, "form-2", FormReviewedPayload{Decision: "reject"})

	select {
	case <-publisher.sawAny:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher stopped consuming after a publish failure")
	}
	cancel()
	<-done

	events := publisher.captured()
	require.Len(t, events, 1)
	assert.Equal(t, "form-2", events[0].Key)
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	dispatcher := NewDispatcher(newCapturePublisher(), WithLogger(logger.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := dispatcher.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestEventTypeValidity(t *testing.T) {
	for _, eventType := range []EventType{
		EventFormPendingReview,
		EventFormReviewed,
		EventTrendingIssue,
		EventFeedbackAssigned,
		EventRewardGranted,
	} {
		assert.True(t, eventType.IsValid(), eventType)
	}
	assert.False(t, EventType("").IsValid())
	assert.False(t, EventType("form_deleted").IsValid())
}
