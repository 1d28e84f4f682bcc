package http

import (
	"net/http"
	"time"

	"github.com/tokengate/tokengate/pkg/httpx"
)

func (r *Router) registerSystem() {
	r.Mux.HandleFunc("GET /livez", r.handleLivez)
	r.Mux.HandleFunc("GET /readyz", r.handleReadyz)
}

// handleLivez reports process liveness only; it must not touch the store.
func (r *Router) handleLivez(w http.ResponseWriter, req *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime_sec": int64(time.Since(r.startTime).Seconds()),
	})
}

// handleReadyz reports whether the store behind the bridge is reachable.
func (r *Router) handleReadyz(w http.ResponseWriter, req *http.Request) {
	if err := r.bridge.Ping(req.Context()); err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
