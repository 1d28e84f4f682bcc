package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate/internal/auth/bridge"
	"github.com/tokengate/tokengate/pkg/envelope"
)

const (
	testTable    = "test_user"
	testUsername = "test_username"
	testPassword = "password123"
)

var tokenRE = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)

func newTestBridge(t *testing.T) bridge.Bridge {
	t.Helper()

	b, err := bridge.Open(bridge.FlavorSQLite, ":memory:", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newTestService(t *testing.T, b bridge.Bridge, opts ...Option) *UserService {
	t.Helper()

	svc, err := NewUserService(context.Background(), b, testTable, opts...)
	require.NoError(t, err)
	return svc
}

func userData(t *testing.T, resp envelope.Response) UserData {
	t.Helper()

	data, ok := resp.Data.(UserData)
	require.True(t, ok, "expected UserData payload, got %T", resp.Data)
	return data
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, newTestBridge(t))

	resp := svc.Register(ctx, testUsername, testPassword)
	require.True(t, envelope.IsSuccess(resp))

	data := userData(t, resp)
	require.Equal(t, testUsername, data.Username)
	require.Regexp(t, tokenRE, data.Token)
	require.Greater(t, data.TokenExpired, time.Now().UnixMilli())
}

func TestRegisterDuplicateUsername(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, newTestBridge(t))

	first := svc.Register(ctx, testUsername, testPassword)
	require.True(t, envelope.IsSuccess(first))

	second := svc.Register(ctx, testUsername, "other-password")
	require.Equal(t, CodeUsernameTaken, second.Code)

	// The original account stays intact and usable.
	login := svc.Login(ctx, testUsername, testPassword)
	require.True(t, envelope.IsSuccess(login))
}

// tokenlessBridge swallows token updates to simulate an account that was
// created but never got its token attached.
type tokenlessBridge struct {
	bridge.Bridge
}

func (b *tokenlessBridge) Update(ctx context.Context, query string, args ...any) (int64, error) {
	if strings.Contains(query, "SET token") {
		return 0, nil
	}
	return b.Bridge.Update(ctx, query, args...)
}

func TestRegisterPartialSuccessWithoutToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, &tokenlessBridge{Bridge: newTestBridge(t)})

	resp := svc.Register(ctx, testUsername, testPassword)
	require.True(t, envelope.IsSuccess(resp), "a created account without token is still a success")

	data := userData(t, resp)
	require.Equal(t, testUsername, data.Username)
	require.Empty(t, data.Token)
	require.Zero(t, data.TokenExpired)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, newTestBridge(t))
	svc.Register(ctx, testUsername, testPassword)

	t.Run("valid credentials issue a token", func(t *testing.T) {
		resp := svc.Login(ctx, testUsername, testPassword)
		require.True(t, envelope.IsSuccess(resp))

		data := userData(t, resp)
		require.Equal(t, testUsername, data.Username)
		require.Regexp(t, tokenRE, data.Token)
	})

	t.Run("unknown username", func(t *testing.T) {
		resp := svc.Login(ctx, "nobody", "x")
		require.Equal(t, CodeUsernameNotFound, resp.Code)
	})

	t.Run("wrong password is not unknown username", func(t *testing.T) {
		resp := svc.Login(ctx, testUsername, "wrong")
		require.Equal(t, CodeWrongPassword, resp.Code)
	})
}

func TestAuthorize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBridge(t)
	svc := newTestService(t, b)
	svc.Register(ctx, testUsername, testPassword)

	login := svc.Login(ctx, testUsername, testPassword)
	token := userData(t, login).Token

	t.Run("valid token", func(t *testing.T) {
		resp := svc.Authorize(ctx, token)
		require.True(t, envelope.IsSuccess(resp))
		require.Equal(t, token, userData(t, resp).Token)
	})

	t.Run("garbage token is invalid, not expired", func(t *testing.T) {
		resp := svc.Authorize(ctx, "garbage-token")
		require.Equal(t, CodeInvalidToken, resp.Code)
		require.Nil(t, resp.Data)
	})

	t.Run("forced expiry is expired, not invalid", func(t *testing.T) {
		past := time.Now().Add(-time.Second).UnixMilli()
		affected, err := b.Update(ctx,
			"UPDATE test_user SET token_expired = ? WHERE username = ?", past, testUsername)
		require.NoError(t, err)
		require.Equal(t, int64(1), affected)

		resp := svc.Authorize(ctx, token)
		require.Equal(t, CodeTokenExpired, resp.Code)
		require.Equal(t, past, userData(t, resp).TokenExpired)
	})
}

func TestAuthorizeNeverIssuedToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBridge(t)
	svc := newTestService(t, b)

	// A row whose token_expired defaulted to zero must never authorize.
	_, err := b.Insert(ctx,
		"INSERT INTO test_user (username, password, token) VALUES (?, ?, ?)",
		"stale", "digest", "staletoken")
	require.NoError(t, err)

	resp := svc.Authorize(ctx, "staletoken")
	require.Equal(t, CodeTokenExpired, resp.Code)
	require.Zero(t, userData(t, resp).TokenExpired)
}

func TestAuthorizeWithShiftedClock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Now()
	clock := func() time.Time { return now }
	svc := newTestService(t, newTestBridge(t), withClock(clock))

	resp := svc.Register(ctx, testUsername, testPassword)
	token := userData(t, resp).Token

	require.True(t, envelope.IsSuccess(svc.Authorize(ctx, token)))

	now = now.Add(DefaultTokenTTL + time.Millisecond)
	require.Equal(t, CodeTokenExpired, svc.Authorize(ctx, token).Code)
}

func TestTokenRotation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, newTestBridge(t))
	svc.Register(ctx, testUsername, testPassword)

	first := userData(t, svc.Login(ctx, testUsername, testPassword)).Token
	second := userData(t, svc.Login(ctx, testUsername, testPassword)).Token
	require.NotEqual(t, first, second)

	// Only the most recently issued token survives.
	require.Equal(t, CodeInvalidToken, svc.Authorize(ctx, first).Code)
	require.True(t, envelope.IsSuccess(svc.Authorize(ctx, second)))
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, newTestBridge(t))

	require.True(t, envelope.IsSuccess(svc.Register(ctx, testUsername, testPassword)))

	login := svc.Login(ctx, testUsername, testPassword)
	require.True(t, envelope.IsSuccess(login))

	auth := svc.Authorize(ctx, userData(t, login).Token)
	require.True(t, envelope.IsSuccess(auth))
	require.GreaterOrEqual(t, userData(t, auth).TokenExpired, time.Now().UnixMilli())
}

func TestBootstrapIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestBridge(t)

	first := newTestService(t, b)
	require.True(t, envelope.IsSuccess(first.Register(ctx, testUsername, testPassword)))

	// A second service over the same table must not recreate or error,
	// and must see existing data.
	second := newTestService(t, b)
	require.Equal(t, CodeUsernameTaken, second.Register(ctx, testUsername, testPassword).Code)
}

func TestConcurrentRegistrationSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, newTestBridge(t))

	// Both callers race register for the same username. Which one wins is
	// unspecified; the invariant is exactly one success and one "taken".
	results := make([]envelope.Response, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Register(ctx, "race_user", testPassword)
		}(i)
	}
	wg.Wait()

	var successes, taken int
	for _, r := range results {
		switch r.Code {
		case envelope.CodeOK:
			successes++
		case CodeUsernameTaken:
			taken++
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, taken)
}

func TestUserByToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, newTestBridge(t))

	token := userData(t, svc.Register(ctx, testUsername, testPassword)).Token

	user, err := svc.UserByToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, testUsername, user.Username)
	require.NotZero(t, user.UserID)

	_, err = svc.UserByToken(ctx, "unknown")
	require.ErrorIs(t, err, bridge.ErrNoRows)
}

func TestGetUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, newTestBridge(t))

	token := userData(t, svc.Register(ctx, testUsername, testPassword)).Token
	user, err := svc.UserByToken(ctx, token)
	require.NoError(t, err)

	resp := svc.GetUser(ctx, user.UserID)
	require.True(t, envelope.IsSuccess(resp))

	data := userData(t, resp)
	require.Equal(t, testUsername, data.Username)
	require.Empty(t, data.Token, "public view never exposes the token")

	require.Equal(t, envelope.CodeUnauthorized, svc.GetUser(ctx, 99999).Code)
}

func TestNewUserServiceRejectsBadTableName(t *testing.T) {
	t.Parallel()

	b := newTestBridge(t)
	for _, name := range []string{"", "1users", "users; DROP TABLE x", "user-table"} {
		_, err := NewUserService(context.Background(), b, name)
		require.Error(t, err, "table name %q", name)
	}
}

func TestTokenOptionsAreConfigurable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := newTestService(t, newTestBridge(t),
		WithTokenLength(16), WithTokenTTL(time.Hour))

	data := userData(t, svc.Register(ctx, testUsername, testPassword))
	require.Len(t, data.Token, 16)
	require.InDelta(t,
		time.Now().Add(time.Hour).UnixMilli(), data.TokenExpired, float64(5*time.Second.Milliseconds()))
}
