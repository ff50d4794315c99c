package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tokenauth/internal/models"
	"github.com/iudanet/tokenauth/internal/server/storage"
)

// testClock - управляемые часы для проверки истечения токенов
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testConfig() Config {
	return Config{
		Issuer:        "tokenauth-test",
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

func newTestService(t *testing.T) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s, err := NewService(testConfig(), WithClock(clock.Now))
	require.NoError(t, err)
	return s, clock
}

// versionStore возвращает фиксированную версию и считает обращения
type versionStore struct {
	versions map[int64]int64
	err      error
	calls    atomic.Int32
}

func (v *versionStore) GetTokenVersion(_ context.Context, userID int64) (int64, error) {
	v.calls.Add(1)
	if v.err != nil {
		return 0, v.err
	}
	version, ok := v.versions[userID]
	if !ok {
		return 0, storage.ErrUserNotFound
	}
	return version, nil
}

func TestNewService_Validation(t *testing.T) {
	tests := []struct {
		mutate func(c *Config)
		name   string
	}{
		{name: "empty access secret", mutate: func(c *Config) { c.AccessSecret = nil }},
		{name: "empty refresh secret", mutate: func(c *Config) { c.RefreshSecret = nil }},
		{name: "same secrets", mutate: func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{name: "zero access ttl", mutate: func(c *Config) { c.AccessTTL = 0 }},
		{name: "negative refresh ttl", mutate: func(c *Config) { c.RefreshTTL = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewService(cfg)
			assert.Error(t, err)
		})
	}
}

func TestIssueAccessToken_RoundTrip(t *testing.T) {
	s, clock := newTestService(t)

	token, err := s.IssueAccessToken(&models.User{ID: 1, TokenVersion: 3})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(15*time.Minute), token.ExpiresAt)
	assert.Equal(t, clock.Now(), token.IssuedAt)
	assert.Equal(t, 15*time.Minute, token.TTL())
	assert.Len(t, strings.Split(token.Value, "."), 3)

	claims, err := s.VerifyAccess(token.Value)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, "tokenauth-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestIssueAccessToken_UniqueIDs(t *testing.T) {
	s, _ := newTestService(t)
	user := &models.User{ID: 1}

	t1, err := s.IssueAccessToken(user)
	require.NoError(t, err)
	t2, err := s.IssueAccessToken(user)
	require.NoError(t, err)

	// jti различается даже при одинаковом времени выпуска
	assert.NotEqual(t, t1.Value, t2.Value)
}

func TestVerifyAccess_ExpiresWithTime(t *testing.T) {
	s, clock := newTestService(t)

	token, err := s.IssueAccessToken(&models.User{ID: 7})
	require.NoError(t, err)

	clock.Advance(14 * time.Minute)
	_, err = s.VerifyAccess(token.Value)
	require.NoError(t, err, "token must be valid before expiry")

	clock.Advance(2 * time.Minute)
	_, err = s.VerifyAccess(token.Value)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyAccess_Invalid(t *testing.T) {
	s, _ := newTestService(t)
	user := &models.User{ID: 1}

	refresh, err := s.IssueRefreshToken(user)
	require.NoError(t, err)

	otherCfg := testConfig()
	otherCfg.AccessSecret = []byte("attacker-secret")
	forger, err := NewService(otherCfg)
	require.NoError(t, err)
	forged, err := forger.IssueAccessToken(user)
	require.NoError(t, err)

	otherIssuerCfg := testConfig()
	otherIssuerCfg.Issuer = "someone-else"
	otherIssuer, err := NewService(otherIssuerCfg)
	require.NoError(t, err)
	foreign, err := otherIssuer.IssueAccessToken(user)
	require.NoError(t, err)

	noneToken, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, AccessClaims{
		UserID: 1,
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    "tokenauth-test",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.token"},
		{name: "forged with another secret", token: forged.Value},
		{name: "refresh token used as access", token: refresh.Value},
		{name: "foreign issuer", token: foreign.Value},
		{name: "alg none", token: noneToken},
		{name: "tampered payload", token: tamper(t, forged.Value)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := s.VerifyAccess(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

// tamper подменяет payload, оставляя подпись прежней
func tamper(t *testing.T, token string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	other, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, AccessClaims{UserID: 999}).SignedString([]byte("x"))
	require.NoError(t, err)
	parts[1] = strings.Split(other, ".")[1]
	return strings.Join(parts, ".")
}

func TestVerifyRefresh_Valid(t *testing.T) {
	s, _ := newTestService(t)
	store := &versionStore{versions: map[int64]int64{1: 2}}

	token, err := s.IssueRefreshToken(&models.User{ID: 1, TokenVersion: 2})
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, token.TTL())

	claims, err := s.VerifyRefresh(context.Background(), token.Value, store)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, int64(2), claims.TokenVersion)
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestVerifyRefresh_Revoked(t *testing.T) {
	s, _ := newTestService(t)
	store := &versionStore{versions: map[int64]int64{1: 0, 2: 0}}

	tokenU, err := s.IssueRefreshToken(&models.User{ID: 1, TokenVersion: 0})
	require.NoError(t, err)
	tokenV, err := s.IssueRefreshToken(&models.User{ID: 2, TokenVersion: 0})
	require.NoError(t, err)

	// отзыв для пользователя 1
	store.versions[1] = 1

	_, err = s.VerifyRefresh(context.Background(), tokenU.Value, store)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	claims, err := s.VerifyRefresh(context.Background(), tokenV.Value, store)
	require.NoError(t, err)
	assert.Equal(t, int64(2), claims.UserID)
}

func TestVerifyRefresh_UnknownUserIsRevoked(t *testing.T) {
	s, _ := newTestService(t)
	store := &versionStore{versions: map[int64]int64{}}

	token, err := s.IssueRefreshToken(&models.User{ID: 42})
	require.NoError(t, err)

	_, err = s.VerifyRefresh(context.Background(), token.Value, store)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestVerifyRefresh_StorageError(t *testing.T) {
	s, _ := newTestService(t)
	storageErr := errors.New("connection refused")
	store := &versionStore{err: storageErr}

	token, err := s.IssueRefreshToken(&models.User{ID: 1})
	require.NoError(t, err)

	_, err = s.VerifyRefresh(context.Background(), token.Value, store)
	require.Error(t, err)
	assert.ErrorIs(t, err, storageErr)
	assert.NotErrorIs(t, err, ErrTokenRevoked)
}

func TestVerifyRefresh_NoLookupForInvalidTokens(t *testing.T) {
	s, clock := newTestService(t)
	store := &versionStore{versions: map[int64]int64{1: 0}}
	user := &models.User{ID: 1}

	access, err := s.IssueAccessToken(user)
	require.NoError(t, err)

	_, err = s.VerifyRefresh(context.Background(), access.Value, store)
	assert.ErrorIs(t, err, ErrInvalidToken)

	refresh, err := s.IssueRefreshToken(user)
	require.NoError(t, err)
	clock.Advance(7*24*time.Hour + time.Second)

	_, err = s.VerifyRefresh(context.Background(), refresh.Value, store)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// структурно невалидные токены не должны доходить до хранилища
	assert.Equal(t, int32(0), store.calls.Load())
}

func TestVerifyRefresh_LookupFunc(t *testing.T) {
	s, _ := newTestService(t)

	token, err := s.IssueRefreshToken(&models.User{ID: 5, TokenVersion: 1})
	require.NoError(t, err)

	lookup := VersionLookupFunc(func(_ context.Context, userID int64) (int64, error) {
		assert.Equal(t, int64(5), userID)
		return 1, nil
	})

	_, err = s.VerifyRefresh(context.Background(), token.Value, lookup)
	assert.NoError(t, err)
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "expired", err: ErrTokenExpired, want: "expired"},
		{name: "revoked", err: ErrTokenRevoked, want: "revoked"},
		{name: "invalid wrapped", err: fmt.Errorf("%w: bad", ErrInvalidToken), want: "invalid"},
		{name: "other", err: errors.New("db down"), want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}
