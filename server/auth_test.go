package server

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"idlearena/store"
)

func newTestAccounts(t *testing.T) (*Accounts, *store.Memory, *fakeClock) {
	t.Helper()
	st := store.NewMemory()
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.JWTSecret = "test-secret"
	cfg.TokenTTL = time.Hour
	return NewAccounts(st, nil, cfg, clock.Now), st, clock
}

func TestRegisterAndAuthenticate(t *testing.T) {
	a, st, clock := newTestAccounts(t)
	ctx := context.Background()

	require.NoError(t, a.Register(ctx, "alice", "secret123"))
	assert.ErrorIs(t, a.Register(ctx, "alice", "other"), ErrDuplicateAccount)

	stored, err := st.Load(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", stored.PasswordHash)
	assert.Equal(t, 1, stored.Level)
	assert.Equal(t, 0, stored.XP)
	assert.Equal(t, 5.0, stored.Stats.Strength)
	assert.Equal(t, clock.Now(), stored.LastOnline)

	acc, err := a.Authenticate(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)

	_, err = a.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Authenticate(ctx, "nobody", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenResume(t *testing.T) {
	a, _, clock := newTestAccounts(t)
	ctx := context.Background()
	require.NoError(t, a.Register(ctx, "alice", "secret123"))

	token, err := a.IssueToken("alice")
	require.NoError(t, err)
	acc, err := a.Resume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)

	_, err = a.Resume(ctx, token+"x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	ghost, err := a.IssueToken("ghost")
	require.NoError(t, err)
	_, err = a.Resume(ctx, ghost)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	clock.Advance(2 * time.Hour)
	_, err = a.Resume(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "expired token")
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	a, _, _ := newTestAccounts(t)
	ctx := context.Background()
	require.NoError(t, a.Register(ctx, "alice", "secret123"))

	cfg := DefaultConfig()
	cfg.JWTSecret = "someone-else"
	other := NewAccounts(store.NewMemory(), nil, cfg, nil)
	forged, err := other.IssueToken("alice")
	require.NoError(t, err)

	_, err = a.Resume(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDefaultConfigRejectsWellKnownSecret(t *testing.T) {
	st := store.NewMemory()
	cfg := DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	require.Empty(t, cfg.JWTSecret)
	a := NewAccounts(st, nil, cfg, nil)
	ctx := context.Background()
	require.NoError(t, a.Register(ctx, "alice", "secret123"))

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("change-me-in-production"))
	require.NoError(t, err)
	_, err = a.Resume(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// 随机密钥仍可恢复本进程签发的 token
	token, err := a.IssueToken("alice")
	require.NoError(t, err)
	acc, err := a.Resume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)

	other := NewAccounts(st, nil, cfg, nil)
	_, err = other.Resume(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "each process gets its own secret")
}
