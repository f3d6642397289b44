package middleware

import (
	"net/http"
	"time"

	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

// RequestTime captures the current time at the start of the request and
// stores it in the context. All domain timestamps within one request derive
// from this single instant.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
