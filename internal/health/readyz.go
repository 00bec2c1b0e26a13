package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/searchforge/creators_proxy/internal/controller"
)

// StatusProvider exposes the cache state reported by Readyz.
type StatusProvider interface {
	Status() controller.Status
}

// Status answers the liveness probe with a fixed payload.
func Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "creators-proxy",
	})
}

// Readyz reports whether the creator cache is loaded. It fails only when the
// cache is empty and the last upstream fetch errored; an empty cache that has
// not been asked for yet is still ready.
func Readyz(p StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := p.Status()

		payload := map[string]any{
			"cache_loaded": st.Loaded,
			"records":      st.Records,
		}
		if st.Loaded {
			payload["fetched_at"] = st.FetchedAt.UTC().Format(time.RFC3339)
		}
		if st.LastError != nil {
			payload["last_error"] = st.LastError.Error()
			payload["last_error_at"] = st.ErrorAt.UTC().Format(time.RFC3339)
		}

		status := http.StatusOK
		if !st.Loaded && st.LastError != nil {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, payload)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
