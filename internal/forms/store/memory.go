package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/dedup"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/forms/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded form store for tests and single-node use. It
// doubles as the duplicate detector's index so the two sides always read the
// same rows. Cross-row serialization comes from the lock-based transaction
// runner keyed by contributor id; the mutex protects map access and keeps
// Execute's read-check-write cycle atomic on a single row.
type InMemory struct {
	mu    sync.RWMutex
	forms map[id.FormID]*models.Form
}

func NewInMemory() *InMemory {
	return &InMemory{forms: make(map[id.FormID]*models.Form)}
}

func (s *InMemory) Create(_ context.Context, form *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.forms[form.ID]; exists {
		return sentinel.ErrConflict
	}
	s.forms[form.ID] = cloneForm(form)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, formID id.FormID) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	form, ok := s.forms[formID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneForm(form), nil
}

// Exists reports whether the form is known in any status. Feedback intake
// accepts reports against non-approved copies users found elsewhere.
func (s *InMemory) Exists(_ context.Context, formID id.FormID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.forms[formID]
	return ok, nil
}

// Execute applies validate then mutate to one form under the store lock.
// Both run against a working copy, so a failed mutate leaves the stored row
// untouched.
func (s *InMemory) Execute(_ context.Context, formID id.FormID, validate func(*models.Form) error, mutate func(*models.Form) error) (*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	form, ok := s.forms[formID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	work := cloneForm(form)
	if err := validate(work); err != nil {
		return nil, err
	}
	if err := mutate(work); err != nil {
		return nil, err
	}
	s.forms[formID] = work
	return cloneForm(work), nil
}

// List returns catalog rows. Field definitions are omitted; FindByID loads
// the full aggregate.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*models.Form, 0)
	for _, form := range s.forms {
		if !matchesFilter(form, filter) {
			continue
		}
		clone := cloneForm(form)
		clone.Fields = nil
		matched = append(matched, clone)
	}
	sort.Slice(matched, func(i, k int) bool {
		if !matched[i].CreatedAt.Equal(matched[k].CreatedAt) {
			return matched[i].CreatedAt.After(matched[k].CreatedAt)
		}
		return matched[i].ID.String() < matched[k].ID.String()
	})
	if filter.Offset >= len(matched) {
		return []*models.Form{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// IncrementUsage bumps a counter on an approved form. A non-approved status
// is a conflict, not a missing row.
func (s *InMemory) IncrementUsage(_ context.Context, formID id.FormID, kind models.UsageKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	form, ok := s.forms[formID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if err := form.CanRecordUsage(); err != nil {
		return sentinel.ErrConflict
	}
	form.ApplyUsage(kind)
	return nil
}

// FindByContentHash scans every stored form regardless of status: identical
// bytes are a duplicate even of a rejected or archived form.
func (s *InMemory) FindByContentHash(_ context.Context, contentHash string) ([]dedup.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dedup.Candidate, 0)
	for _, form := range s.forms {
		if form.ContentHash == contentHash {
			out = append(out, dedup.Candidate{ID: form.ID, Title: form.Title})
		}
	}
	sortCandidates(out)
	return out, nil
}

func (s *InMemory) FindCandidates(_ context.Context, jurisdictionID id.JurisdictionID, formType string) ([]dedup.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dedup.Candidate, 0)
	for _, form := range s.forms {
		if form.JurisdictionID != jurisdictionID || form.FormType.String() != formType {
			continue
		}
		if form.Status == models.StatusRejected {
			continue
		}
		out = append(out, dedup.Candidate{ID: form.ID, Title: form.Title})
	}
	sortCandidates(out)
	return out, nil
}

func (s *InMemory) FindApprovedByNumber(_ context.Context, formNumber string, jurisdictionID id.JurisdictionID) ([]dedup.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dedup.Candidate, 0)
	for _, form := range s.forms {
		if form.Status != models.StatusApproved {
			continue
		}
		if form.FormNumber != formNumber || form.JurisdictionID != jurisdictionID {
			continue
		}
		out = append(out, dedup.Candidate{ID: form.ID, Title: form.Title})
	}
	sortCandidates(out)
	return out, nil
}

func matchesFilter(form *models.Form, filter models.ListFilter) bool {
	if filter.PublicOnly && !form.IsPublic {
		return false
	}
	if filter.JurisdictionID != nil && form.JurisdictionID != *filter.JurisdictionID {
		return false
	}
	if filter.FormType != nil && form.FormType != *filter.FormType {
		return false
	}
	if filter.Status != nil && form.Status != *filter.Status {
		return false
	}
	if filter.ContributorID != nil && form.ContributorID != *filter.ContributorID {
		return false
	}
	return true
}

func sortCandidates(out []dedup.Candidate) {
	sort.Slice(out, func(i, k int) bool { return out[i].ID.String() < out[k].ID.String() })
}

func cloneForm(f *models.Form) *models.Form {
	clone := *f
	if f.ReviewerID != nil {
		rid := *f.ReviewerID
		clone.ReviewerID = &rid
	}
	if f.ReviewScore != nil {
		score := *f.ReviewScore
		clone.ReviewScore = &score
	}
	if f.ReviewChecklist != nil {
		checklist := *f.ReviewChecklist
		clone.ReviewChecklist = &checklist
	}
	if f.RevisionDeadline != nil {
		ts := *f.RevisionDeadline
		clone.RevisionDeadline = &ts
	}
	if f.SupersededBy != nil {
		fid := *f.SupersededBy
		clone.SupersededBy = &fid
	}
	if f.Fields != nil {
		clone.Fields = make([]models.FormField, len(f.Fields))
		copy(clone.Fields, f.Fields)
		for i := range clone.Fields {
			if opts := f.Fields[i].Validation.Options; opts != nil {
				clone.Fields[i].Validation.Options = append([]string(nil), opts...)
			}
		}
	}
	if f.RequestedChanges != nil {
		clone.RequestedChanges = append([]models.RequestedChange(nil), f.RequestedChanges...)
	}
	return &clone
}
