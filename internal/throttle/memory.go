package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

// sweepEvery bounds how much garbage accumulates between sweeps of expired
// windows.
const sweepEvery = 1024

// Memory counts windows in process memory. Single node only; a fleet shares
// totals through Redis instead.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	incrs   int
}

type window struct {
	count   int64
	resetAt time.Time
}

// NewMemory creates an empty in-memory counter store.
func NewMemory() *Memory {
	return &Memory{windows: make(map[string]*window)}
}

// Incr adds one hit to the key's current window, opening a fresh window when
// the previous one has expired.
func (s *Memory) Incr(ctx context.Context, key string, d time.Duration) (int64, time.Time, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.incrs++
	if s.incrs%sweepEvery == 0 {
		s.sweep(now)
	}

	w := s.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(d)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

// sweep drops expired windows. Caller holds s.mu.
func (s *Memory) sweep(now time.Time) {
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}
