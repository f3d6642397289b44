package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/httputil"
)

// readyCheckTimeout bounds each dependency probe so a hung backend turns the
// probe into a failure instead of a stall.
const readyCheckTimeout = 2 * time.Second

// ReadyCheck reports whether one dependency can serve traffic.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func handleReadyz(checks []ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := make(map[string]string, len(checks))
		healthy := true

		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
			err := c.Check(ctx)
			cancel()

			if err != nil {
				healthy = false
				results[c.Name] = err.Error()
				continue
			}
			results[c.Name] = "ok"
		}

		if !healthy {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Checks: results})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Checks: results})
	}
}
