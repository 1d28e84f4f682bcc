// Package service implements the authentication business logic: user
// registration, login and token verification against one logical user
// table, persisted exclusively through the bridge.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/tokengate/tokengate/internal/auth/bridge"
	"github.com/tokengate/tokengate/pkg/cryptox"
	"github.com/tokengate/tokengate/pkg/envelope"
	"github.com/tokengate/tokengate/pkg/slogx"
)

// Operation outcome codes. These are a stable wire contract shared with
// every client; codes are scoped per operation.
const (
	// Register
	CodeUsernameTaken = 10

	// Login
	CodeUsernameNotFound = 10
	CodeWrongPassword    = 11

	// Authorize
	CodeInvalidToken = 10
	CodeTokenExpired = 11
)

// Token issuance defaults, overridable per service instance.
const (
	DefaultTokenLength = 8
	DefaultTokenTTL    = 24 * time.Hour
)

var errTokenNotAttached = errors.New("service: token update affected no rows")

// UserData is the operation payload carried in the response envelope.
// Token fields are only present when a token was actually attached.
type UserData struct {
	UserID       int64  `json:"user_id,omitempty"`
	Username     string `json:"username,omitempty"`
	Token        string `json:"token,omitempty"`
	TokenExpired int64  `json:"token_expired,omitempty"`
}

// UserService is stateless and safe for concurrent use: every call runs
// independently and all state lives behind the bridge.
type UserService struct {
	bridge      bridge.Bridge
	table       string
	tokenLength int
	tokenTTL    time.Duration
	now         func() time.Time
}

// Option customises a UserService at construction.
type Option func(*UserService)

// WithTokenLength overrides the issued token length.
func WithTokenLength(n int) Option {
	return func(s *UserService) {
		if n > 0 {
			s.tokenLength = n
		}
	}
}

// WithTokenTTL overrides the token validity window.
func WithTokenTTL(d time.Duration) Option {
	return func(s *UserService) {
		if d > 0 {
			s.tokenTTL = d
		}
	}
}

// withClock substitutes the time source in tests.
func withClock(now func() time.Time) Option {
	return func(s *UserService) { s.now = now }
}

// NewUserService builds the service for one user table and bootstraps the
// schema if the table does not exist yet. Bootstrap happens exactly here,
// before any operation is reachable.
func NewUserService(ctx context.Context, b bridge.Bridge, table string, opts ...Option) (*UserService, error) {
	if !validTableName(table) {
		return nil, fmt.Errorf("service: invalid table name %q", table)
	}

	s := &UserService{
		bridge:      b,
		table:       table,
		tokenLength: DefaultTokenLength,
		tokenTTL:    DefaultTokenTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if !b.TableExists(ctx, table) {
		if err := s.createTable(ctx); err != nil {
			return nil, fmt.Errorf("service: bootstrap table %s: %w", table, err)
		}
	}
	return s, nil
}

// createTable issues the transactional schema bootstrap through the bridge:
// the user table, a unique index on username and a lookup index on token.
// IF NOT EXISTS keeps concurrent bootstraps idempotent.
func (s *UserService) createTable(ctx context.Context) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.bridge.Flavor() == bridge.FlavorPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		user_id %s,
		username VARCHAR(64) UNIQUE,
		password VARCHAR(2048),
		token VARCHAR(2048),
		token_expired BIGINT DEFAULT 0
	)`, s.table, pk)

	usernameIdx := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s_username_uindex ON %s (username)", s.table, s.table)
	tokenIdx := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_token_index ON %s (token)", s.table, s.table)

	return s.bridge.CreateTable(ctx, createSQL, usernameIdx, tokenIdx)
}

// Register creates an account and issues its first token. A failure to
// attach the token is a partial success: the account exists and a later
// login recovers a token.
func (s *UserService) Register(ctx context.Context, username, password string) envelope.Response {
	log := slogx.FromContext(ctx)

	_, err := s.bridge.QueryOne(ctx,
		fmt.Sprintf("SELECT user_id FROM %s WHERE username = ?", s.table), username)
	switch {
	case err == nil:
		return envelope.Err(CodeUsernameTaken)
	case !errors.Is(err, bridge.ErrNoRows):
		log.Error("register: username lookup failed", "error", err)
		return envelope.Err(envelope.CodeInternal)
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (username, password) VALUES (?, ?)", s.table)
	if s.bridge.Flavor() == bridge.FlavorPostgres {
		insertSQL += " RETURNING user_id"
	}
	userID, err := s.bridge.Insert(ctx, insertSQL, username, cryptox.HashPassword(password))
	if err != nil {
		// The lookup above races concurrent writers; the store's unique
		// constraint is the authority on who won.
		if bridge.IsUniqueViolation(err) {
			return envelope.Err(CodeUsernameTaken)
		}
		log.Error("register: insert failed", "username", username, "error", err)
		return envelope.Err(envelope.CodeInternal)
	}

	data := UserData{Username: username}
	token, expiry, err := s.attachToken(ctx, userID)
	if err != nil {
		log.Warn("register: token attach failed", "user_id", userID, "error", err)
		return envelope.OK(data)
	}
	data.Token = token
	data.TokenExpired = expiry
	return envelope.OK(data)
}

// Login authenticates by username and password digest and rotates the
// stored token. The previous token stops working immediately.
func (s *UserService) Login(ctx context.Context, username, password string) envelope.Response {
	log := slogx.FromContext(ctx)

	row, err := s.bridge.QueryOne(ctx,
		fmt.Sprintf("SELECT user_id FROM %s WHERE username = ? AND password = ?", s.table),
		username, cryptox.HashPassword(password))
	if err != nil {
		if !errors.Is(err, bridge.ErrNoRows) {
			log.Error("login: credential lookup failed", "error", err)
			return envelope.Err(envelope.CodeInternal)
		}

		// Tell an unknown username apart from a wrong password.
		_, err := s.bridge.QueryOne(ctx,
			fmt.Sprintf("SELECT user_id FROM %s WHERE username = ?", s.table), username)
		switch {
		case errors.Is(err, bridge.ErrNoRows):
			return envelope.Err(CodeUsernameNotFound)
		case err != nil:
			log.Error("login: username lookup failed", "error", err)
			return envelope.Err(envelope.CodeInternal)
		}
		return envelope.Err(CodeWrongPassword)
	}

	data := UserData{Username: username}
	token, expiry, err := s.attachToken(ctx, row.Int64("user_id"))
	if err != nil {
		log.Warn("login: token attach failed", "username", username, "error", err)
		return envelope.OK(data)
	}
	data.Token = token
	data.TokenExpired = expiry
	return envelope.OK(data)
}

// Authorize verifies a bearer token. An unknown token and an expired token
// resolve to distinct codes; the expired outcome carries the expiry value
// for diagnostics and nothing else.
func (s *UserService) Authorize(ctx context.Context, token string) envelope.Response {
	log := slogx.FromContext(ctx)

	row, err := s.bridge.QueryOne(ctx,
		fmt.Sprintf("SELECT user_id, token_expired FROM %s WHERE token = ?", s.table), token)
	switch {
	case errors.Is(err, bridge.ErrNoRows):
		return envelope.Err(CodeInvalidToken)
	case err != nil:
		log.Error("authorize: token lookup failed", "error", err)
		return envelope.Err(envelope.CodeInternal)
	}

	expiry := row.Int64("token_expired")
	if s.now().UnixMilli() > expiry {
		return envelope.Fail(CodeTokenExpired, UserData{TokenExpired: expiry})
	}
	return envelope.OK(UserData{Token: token, TokenExpired: expiry})
}

// UserByToken resolves the row owning a token. The transport layer calls
// it after a successful Authorize to attach identity to the request; it
// performs no expiry check of its own.
func (s *UserService) UserByToken(ctx context.Context, token string) (UserData, error) {
	row, err := s.bridge.QueryOne(ctx,
		fmt.Sprintf("SELECT user_id, username, token_expired FROM %s WHERE token = ?", s.table), token)
	if err != nil {
		return UserData{}, err
	}
	return UserData{
		UserID:       row.Int64("user_id"),
		Username:     row.Text("username"),
		Token:        token,
		TokenExpired: row.Int64("token_expired"),
	}, nil
}

// GetUser returns the public view of an account.
func (s *UserService) GetUser(ctx context.Context, userID int64) envelope.Response {
	log := slogx.FromContext(ctx)

	row, err := s.bridge.QueryOne(ctx,
		fmt.Sprintf("SELECT user_id, username FROM %s WHERE user_id = ?", s.table), userID)
	switch {
	case errors.Is(err, bridge.ErrNoRows):
		return envelope.Err(envelope.CodeUnauthorized)
	case err != nil:
		log.Error("get user: lookup failed", "user_id", userID, "error", err)
		return envelope.Err(envelope.CodeInternal)
	}

	return envelope.OK(UserData{
		UserID:   row.Int64("user_id"),
		Username: row.Text("username"),
	})
}

// attachToken issues a fresh random token with a new expiry and overwrites
// whatever the row held before.
func (s *UserService) attachToken(ctx context.Context, userID int64) (string, int64, error) {
	token, err := cryptox.RandomAlphanumeric(s.tokenLength)
	if err != nil {
		return "", 0, err
	}
	expiry := s.now().Add(s.tokenTTL).UnixMilli()

	affected, err := s.bridge.Update(ctx,
		fmt.Sprintf("UPDATE %s SET token = ?, token_expired = ? WHERE user_id = ?", s.table),
		token, expiry, userID)
	if err != nil {
		return "", 0, err
	}
	if affected == 0 {
		return "", 0, errTokenNotAttached
	}
	return token, expiry, nil
}

// validTableName accepts plain SQL identifiers only; the table name is the
// one value interpolated into statement text.
func validTableName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return true
}
