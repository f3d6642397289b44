package throttle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/logger"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

var throttleTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func limited(limiter *Limiter, rule Rule) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return limiter.Limit(rule)(next)
}

func throttledRequest(caller, ip string, at time.Time) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/forms", nil)
	ctx := requestcontext.WithTime(req.Context(), at)
	if caller != "" {
		ctx = requestcontext.WithCallerID(ctx, caller)
	}
	if ip != "" {
		ctx = requestcontext.WithClientMetadata(ctx, ip, "")
	}
	return req.WithContext(ctx)
}

func TestLimit_AllowsUnderLimit(t *testing.T) {
	limiter := New(NewMemory(), logger.Discard())
	h := limited(limiter, Rule{Name: "submit", Limit: 2, Window: time.Minute})

	first := httptest.NewRecorder()
	h.ServeHTTP(first, throttledRequest("caller-a", "", throttleTime))
	require.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	second := httptest.NewRecorder()
	h.ServeHTTP(second, throttledRequest("caller-a", "", throttleTime))
	require.Equal(t, http.StatusNoContent, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
}

func TestLimit_RejectsOverLimit(t *testing.T) {
	limiter := New(NewMemory(), logger.Discard())
	h := limited(limiter, Rule{Name: "submit", Limit: 1, Window: time.Minute})

	h.ServeHTTP(httptest.NewRecorder(), throttledRequest("caller-a", "", throttleTime))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, throttledRequest("caller-a", "", throttleTime))

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	var body exceededResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body.Error)
	assert.Equal(t, 60, body.RetryAfter)
}

func TestLimit_KeysByCaller(t *testing.T) {
	limiter := New(NewMemory(), logger.Discard())
	h := limited(limiter, Rule{Name: "submit", Limit: 1, Window: time.Minute})

	first := httptest.NewRecorder()
	h.ServeHTTP(first, throttledRequest("caller-a", "", throttleTime))
	assert.Equal(t, http.StatusNoContent, first.Code)

	other := httptest.NewRecorder()
	h.ServeHTTP(other, throttledRequest("caller-b", "", throttleTime))
	assert.Equal(t, http.StatusNoContent, other.Code, "one caller's window never bleeds into another's")

	repeat := httptest.NewRecorder()
	h.ServeHTTP(repeat, throttledRequest("caller-a", "", throttleTime))
	assert.Equal(t, http.StatusTooManyRequests, repeat.Code)
}

func TestLimit_AnonymousKeysByClientIP(t *testing.T) {
	limiter := New(NewMemory(), logger.Discard())
	h := limited(limiter, Rule{Name: "submit", Limit: 1, Window: time.Minute})

	h.ServeHTTP(httptest.NewRecorder(), throttledRequest("", "203.0.113.7", throttleTime))

	sameIP := httptest.NewRecorder()
	h.ServeHTTP(sameIP, throttledRequest("", "203.0.113.7", throttleTime))
	assert.Equal(t, http.StatusTooManyRequests, sameIP.Code)

	otherIP := httptest.NewRecorder()
	h.ServeHTTP(otherIP, throttledRequest("", "198.51.100.9", throttleTime))
	assert.Equal(t, http.StatusNoContent, otherIP.Code)
}

func TestLimit_WindowReopens(t *testing.T) {
	limiter := New(NewMemory(), logger.Discard())
	h := limited(limiter, Rule{Name: "submit", Limit: 1, Window: time.Minute})

	h.ServeHTTP(httptest.NewRecorder(), throttledRequest("caller-a", "", throttleTime))

	blocked := httptest.NewRecorder()
	h.ServeHTTP(blocked, throttledRequest("caller-a", "", throttleTime.Add(30*time.Second)))
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)

	reopened := httptest.NewRecorder()
	h.ServeHTTP(reopened, throttledRequest("caller-a", "", throttleTime.Add(time.Minute)))
	assert.Equal(t, http.StatusNoContent, reopened.Code)
}

func TestLimit_FailsOpenOnStoreError(t *testing.T) {
	limiter := New(failingStore{}, logger.Discard())
	h := limited(limiter, Rule{Name: "submit", Limit: 1, Window: time.Minute})

	for range 3 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, throttledRequest("caller-a", "", throttleTime))
		assert.Equal(t, http.StatusNoContent, rr.Code, "a broken counter must not take writes down with it")
	}
}

func TestLimit_Disabled(t *testing.T) {
	store := &countingStore{}
	limiter := New(store, logger.Discard(), WithDisabled(true))
	h := limited(limiter, Rule{Name: "submit", Limit: 1, Window: time.Minute})

	for range 5 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, throttledRequest("caller-a", "", throttleTime))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	}
	assert.Zero(t, store.calls)
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, assert.AnError
}

type countingStore struct {
	calls int
}

func (s *countingStore) Incr(_ context.Context, _ string, d time.Duration) (int64, time.Time, error) {
	s.calls++
	return 1, throttleTime.Add(d), nil
}
