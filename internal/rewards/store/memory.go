package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
)

// MemoryStats is a mutex-guarded stats store for tests and single-node use.
// Row-level serialization across a read-modify-write cycle comes from the
// lock-based transaction runner keyed by contributor id; this mutex only
// protects map access.
type MemoryStats struct {
	mu   sync.RWMutex
	rows map[id.ContributorID]*models.ContributorStats
}

func NewMemoryStats() *MemoryStats {
	return &MemoryStats{rows: make(map[id.ContributorID]*models.ContributorStats)}
}

func (s *MemoryStats) GetOrCreate(_ context.Context, contributorID id.ContributorID, now time.Time) (*models.ContributorStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rows[contributorID]; ok {
		return cloneStats(st), nil
	}
	st := models.NewContributorStats(contributorID, now)
	s.rows[contributorID] = cloneStats(st)
	return st, nil
}

func (s *MemoryStats) Update(_ context.Context, stats *models.ContributorStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[stats.ContributorID]; !ok {
		return sentinel.ErrNotFound
	}
	s.rows[stats.ContributorID] = cloneStats(stats)
	return nil
}

func cloneStats(st *models.ContributorStats) *models.ContributorStats {
	clone := *st
	if st.LastContributionAt != nil {
		ts := *st.LastContributionAt
		clone.LastContributionAt = &ts
	}
	return &clone
}

// MemoryLedger is a mutex-guarded append-only ledger store.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[id.LedgerEntryID]*models.RewardLedgerEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[id.LedgerEntryID]*models.RewardLedgerEntry)}
}

func (s *MemoryLedger) Append(_ context.Context, entry *models.RewardLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.ID]; exists {
		return sentinel.ErrConflict
	}
	s.entries[entry.ID] = cloneEntry(entry)
	return nil
}

func (s *MemoryLedger) ListByContributor(_ context.Context, contributorID id.ContributorID) ([]*models.RewardLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.RewardLedgerEntry, 0)
	for _, e := range s.entries {
		if e.ContributorID == contributorID {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].GrantedAt.Equal(out[k].GrantedAt) {
			return out[i].GrantedAt.Before(out[k].GrantedAt)
		}
		return out[i].ID.String() < out[k].ID.String()
	})
	return out, nil
}

// MarkUsed flips an active entry to used. Marking a non-active entry is a
// conflict so a raced redemption cannot consume the same grant twice.
func (s *MemoryLedger) MarkUsed(_ context.Context, entryID id.LedgerEntryID, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.Status != models.RewardStatusActive {
		return sentinel.ErrConflict
	}
	e.Status = models.RewardStatusUsed
	ts := usedAt
	e.UsedAt = &ts
	return nil
}

func (s *MemoryLedger) MarkExpiredDue(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flipped := 0
	for _, e := range s.entries {
		if e.Status == models.RewardStatusActive && e.ExpiredAt(now) {
			e.Status = models.RewardStatusExpired
			flipped++
		}
	}
	return flipped, nil
}

func cloneEntry(e *models.RewardLedgerEntry) *models.RewardLedgerEntry {
	clone := *e
	if e.FormID != nil {
		fid := *e.FormID
		clone.FormID = &fid
	}
	if e.ExpiresAt != nil {
		ts := *e.ExpiresAt
		clone.ExpiresAt = &ts
	}
	if e.UsedAt != nil {
		ts := *e.UsedAt
		clone.UsedAt = &ts
	}
	return &clone
}
