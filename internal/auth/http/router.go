// Package http exposes the auth service over HTTP. It parses requests,
// forwards them to the service and writes the uniform response envelope;
// all business decisions stay behind the service.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tokengate/tokengate/internal/auth/bridge"
	"github.com/tokengate/tokengate/internal/auth/service"
	"github.com/tokengate/tokengate/pkg/httpx"
	"github.com/tokengate/tokengate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger    *slog.Logger
	startTime time.Time

	bridge bridge.Bridge
	Users  *service.UserService
}

func NewRouter(users *service.UserService, b bridge.Bridge, logger *slog.Logger) *Router {
	r := &Router{
		Mux:       http.NewServeMux(),
		logger:    logger,
		startTime: time.Now(),
		bridge:    b,
		Users:     users,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}
