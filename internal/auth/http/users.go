package http

import (
	"encoding/json"
	"net/http"

	"github.com/tokengate/tokengate/pkg/envelope"
	"github.com/tokengate/tokengate/pkg/httpx"
	"github.com/tokengate/tokengate/pkg/slogx"
)

// TokenHeader is the request header carrying the bearer token.
const TokenHeader = "token"

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *Router) registerUsers() {
	// Credential endpoints get the strict limit to slow brute forcing.
	strict := httpx.RateLimitByIP(httpx.StrictLimit)

	r.Mux.Handle("POST /v1/user/register", strict(http.HandlerFunc(r.handleRegister)))
	r.Mux.Handle("POST /v1/user/login", strict(http.HandlerFunc(r.handleLogin)))
	r.Mux.Handle("GET /v1/user/get", r.requireToken(http.HandlerFunc(r.handleGetUser)))
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	creds, ok := decodeCredentials(w, req)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, r.Users.Register(req.Context(), creds.Username, creds.Password))
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	creds, ok := decodeCredentials(w, req)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, r.Users.Login(req.Context(), creds.Username, creds.Password))
}

func (r *Router) handleGetUser(w http.ResponseWriter, req *http.Request) {
	userID, ok := httpx.UserIDFromContext(req.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusOK, envelope.Err(envelope.CodeInternal))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, r.Users.GetUser(req.Context(), userID))
}

// requireToken authorizes the request's token header and resolves the
// owning identity into the request context. Resolving user_id/username
// here keeps the service's Authorize payload minimal.
func (r *Router) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		token := req.Header.Get(TokenHeader)

		resp := r.Users.Authorize(req.Context(), token)
		if !envelope.IsSuccess(resp) {
			httpx.WriteJSON(w, http.StatusOK, envelope.Err(envelope.CodeUnauthorized))
			return
		}

		user, err := r.Users.UserByToken(req.Context(), token)
		if err != nil {
			slogx.FromContext(req.Context()).Error("identity resolution failed", "error", err)
			httpx.WriteJSON(w, http.StatusOK, envelope.Err(envelope.CodeInternal))
			return
		}

		ctx := httpx.WithIdentity(req.Context(), user.UserID, user.Username)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func decodeCredentials(w http.ResponseWriter, req *http.Request) (credentialsRequest, bool) {
	var creds credentialsRequest
	if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
		slogx.FromContext(req.Context()).Warn("malformed request body", "error", err)
		httpx.WriteJSON(w, http.StatusOK, envelope.Err(envelope.CodeInternal))
		return credentialsRequest{}, false
	}
	return creds, true
}
