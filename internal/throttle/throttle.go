// Package throttle enforces fixed-window rate limits on the write endpoints.
// Counting lives behind the Store interface so a single node can run on the
// in-memory window while a fleet shares totals through Redis. A request is
// keyed by the authenticated caller when one is present and by client IP
// otherwise, so an abusive anonymous source cannot starve signed-in users.
//
// A failing counter never blocks traffic. Store errors are logged, counted,
// and the request passes through unchecked.
package throttle

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/httputil"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

var (
	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldleaves_throttle_rejections_total",
		Help: "Requests rejected by the rate limiter, by rule.",
	}, []string{"rule"})
	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldleaves_throttle_store_errors_total",
		Help: "Counter failures that let a request through unchecked.",
	}, []string{"rule"})
)

// Rule names one limited operation and its window.
type Rule struct {
	Name   string // key segment and metric label
	Limit  int
	Window time.Duration
}

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, set when not allowed
}

// Store counts hits per key within a fixed window. Incr reports the running
// total including this hit and the instant the window expires.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

// Limiter gates HTTP handlers behind per-caller fixed windows.
type Limiter struct {
	store    Store
	logger   *slog.Logger
	disabled bool
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithDisabled turns enforcement off entirely (demo mode and tests).
func WithDisabled(disabled bool) Option {
	return func(l *Limiter) {
		l.disabled = disabled
	}
}

// New creates a Limiter backed by the given counter store.
func New(store Store, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.disabled {
		logger.Info("request throttling disabled")
	}
	return l
}

// Limit returns middleware enforcing the rule against each request's subject.
func (l *Limiter) Limit(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			result, err := l.check(ctx, rule, subject(ctx))
			if err != nil {
				storeErrorsTotal.WithLabelValues(rule.Name).Inc()
				l.logger.ErrorContext(ctx, "throttle check failed",
					"rule", rule.Name,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			// Headers go out on every response so well-behaved clients can
			// pace themselves before hitting the wall.
			writeLimitHeaders(w, result)

			if !result.Allowed {
				rejectionsTotal.WithLabelValues(rule.Name).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, &exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many requests. Please try again later.",
					RetryAfter: result.RetryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) check(ctx context.Context, rule Rule, subject string) (*Result, error) {
	count, resetAt, err := l.store.Incr(ctx, rule.Name+":"+subject, rule.Window)
	if err != nil {
		return nil, err
	}

	result := &Result{Limit: rule.Limit, ResetAt: resetAt}
	if count <= int64(rule.Limit) {
		result.Allowed = true
		result.Remaining = rule.Limit - int(count)
		return result, nil
	}

	retry := int(math.Ceil(resetAt.Sub(requestcontext.Now(ctx)).Seconds()))
	if retry < 1 {
		retry = 1
	}
	result.RetryAfter = retry
	return result, nil
}

// subject picks the window key for a request. Authenticated callers get a
// window of their own; anonymous traffic shares one per source IP.
func subject(ctx context.Context) string {
	if caller := requestcontext.CallerID(ctx); caller != "" {
		return caller
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		return ip
	}
	return "unknown"
}

func writeLimitHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
