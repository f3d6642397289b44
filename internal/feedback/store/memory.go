package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
)

// InMemory keeps feedback rows, the per-day ticket sequence, and the
// reviewer roster under one lock, mirroring the single-transaction
// semantics of the pgx store. Cross-row serialization comes from the
// lock-based transaction runner; the mutex protects map access and keeps
// each read-check-write cycle atomic.
type InMemory struct {
	mu        sync.RWMutex
	feedback  map[id.FeedbackID]*models.FormFeedback
	sequences map[string]int
	reviewers map[id.ReviewerID]*models.Reviewer
}

func NewInMemory() *InMemory {
	return &InMemory{
		feedback:  make(map[id.FeedbackID]*models.FormFeedback),
		sequences: make(map[string]int),
		reviewers: make(map[id.ReviewerID]*models.Reviewer),
	}
}

func (s *InMemory) Create(_ context.Context, fb *models.FormFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.feedback[fb.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.feedback {
		if existing.TicketNumber == fb.TicketNumber {
			return sentinel.ErrConflict
		}
	}
	s.feedback[fb.ID] = cloneFeedback(fb)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, feedbackID id.FeedbackID) (*models.FormFeedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fb, ok := s.feedback[feedbackID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneFeedback(fb), nil
}

// Execute applies validate then mutate to one report under the store lock.
// A nil validate skips the guard. Both run against a working copy, so a
// failed mutate leaves the stored row untouched.
func (s *InMemory) Execute(_ context.Context, feedbackID id.FeedbackID, validate func(*models.FormFeedback) error, mutate func(*models.FormFeedback) error) (*models.FormFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fb, ok := s.feedback[feedbackID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := cloneFeedback(fb)
	if validate != nil {
		if err := validate(work); err != nil {
			return nil, err
		}
	}
	if err := mutate(work); err != nil {
		return nil, err
	}
	s.feedback[feedbackID] = work
	return cloneFeedback(work), nil
}

func (s *InMemory) ListByForm(_ context.Context, formID id.FormID, filter models.ListFilter) ([]*models.FormFeedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.FormFeedback
	for _, fb := range s.feedback {
		if fb.FormID != formID {
			continue
		}
		if filter.Status != nil && fb.Status != *filter.Status {
			continue
		}
		out = append(out, cloneFeedback(fb))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CountSimilar counts reports clustered with the incoming one: same form and
// type, narrowed to the named field when the report has one.
func (s *InMemory) CountSimilar(_ context.Context, formID id.FormID, feedbackType models.FeedbackType, fieldName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, fb := range s.feedback {
		if fb.FormID != formID || fb.FeedbackType != feedbackType {
			continue
		}
		if fieldName != "" && fb.FieldName != fieldName {
			continue
		}
		count++
	}
	return count, nil
}

// NextTicket advances the day's sequence and returns the new value. The
// first ticket of a day is 1.
func (s *InMemory) NextTicket(_ context.Context, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[day]++
	return s.sequences[day], nil
}

// ClaimLeastLoaded picks the active reviewer with the fewest open items,
// breaking ties by id order, and increments their load. Returns
// sentinel.ErrNotFound when the roster has nobody eligible.
func (s *InMemory) ClaimLeastLoaded(_ context.Context) (*models.Reviewer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pick *models.Reviewer
	for _, r := range s.reviewers {
		if !r.Active {
			continue
		}
		if pick == nil || r.OpenCount < pick.OpenCount ||
			(r.OpenCount == pick.OpenCount && strings.Compare(r.ID.String(), pick.ID.String()) < 0) {
			pick = r
		}
	}
	if pick == nil {
		return nil, sentinel.ErrNotFound
	}
	pick.OpenCount++
	claimed := *pick
	return &claimed, nil
}

// Claim increments a reviewer's open count. Unknown ids no-op so actors
// outside the roster can still work reports.
func (s *InMemory) Claim(_ context.Context, reviewerID id.ReviewerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reviewers[reviewerID]; ok {
		r.OpenCount++
	}
	return nil
}

// Release returns a reviewer's capacity, flooring at zero.
func (s *InMemory) Release(_ context.Context, reviewerID id.ReviewerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reviewers[reviewerID]; ok && r.OpenCount > 0 {
		r.OpenCount--
	}
	return nil
}

// UpsertReviewer adds or refreshes a roster row. This is the provisioning
// hook; roster administration has no public API.
func (s *InMemory) UpsertReviewer(_ context.Context, reviewer *models.Reviewer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *reviewer
	s.reviewers[reviewer.ID] = &stored
	return nil
}

// Reviewer returns a roster row by id.
func (s *InMemory) Reviewer(_ context.Context, reviewerID id.ReviewerID) (*models.Reviewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviewers[reviewerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *r
	return &out, nil
}

func cloneFeedback(f *models.FormFeedback) *models.FormFeedback {
	clone := *f
	if f.AssignedTo != nil {
		assignee := *f.AssignedTo
		clone.AssignedTo = &assignee
	}
	return &clone
}
