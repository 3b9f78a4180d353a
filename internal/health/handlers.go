package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady toggles readiness. The server flips it off before draining.
func SetReady(v bool) {
	ready.Store(v)
}

// Pinger is implemented by the cart storage backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Storage Pinger
	// Backend names the storage driver in the readiness report.
	Backend string
	Timeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness from a storage ping.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"storage": "ok"}
	if h.Backend != "" {
		status["backend"] = h.Backend
	}
	code := http.StatusOK
	switch {
	case !ready.Load():
		status["storage"] = "draining"
		code = http.StatusServiceUnavailable
	case h.Storage == nil:
		status["storage"] = "not configured"
		code = http.StatusServiceUnavailable
	default:
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
		defer cancel()
		if err := h.Storage.Ping(ctx); err != nil {
			status["storage"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.Timeout
}
