package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/sync-party/internal/domain"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	s, err := NewTokenSigner("secret", "sync-party")
	require.NoError(t, err)

	tok, err := s.Sign("sid-1", "user-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", claims.SessionID())
	assert.Equal(t, "user-1", claims.Subject)
}

func TestTokenSigner_Expired(t *testing.T) {
	s, err := NewTokenSigner("secret", "sync-party")
	require.NoError(t, err)

	tok, err := s.Sign("sid-1", "user-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = s.Parse(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenSigner_WrongIssuer(t *testing.T) {
	a, err := NewTokenSigner("secret", "a")
	require.NoError(t, err)
	b, err := NewTokenSigner("secret", "b")
	require.NoError(t, err)

	tok, err := a.Sign("sid-1", "user-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = b.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenSigner_RandomKey(t *testing.T) {
	a, err := NewTokenSigner("", "sync-party")
	require.NoError(t, err)
	b, err := NewTokenSigner("", "sync-party")
	require.NoError(t, err)

	tok, err := a.Sign("sid-1", "user-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = a.Parse(tok)
	assert.NoError(t, err)
	_, err = b.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	now := time.Now()

	require.NoError(t, store.Save(ctx, &Session{
		ID:        "live",
		Principal: domain.Principal{ID: "u1"},
		ExpiresAt: now.Add(time.Hour),
		Token:     "not-stored",
	}))
	require.NoError(t, store.Save(ctx, &Session{ID: "stale", ExpiresAt: now.Add(time.Minute)}))

	got, err := store.Get(ctx, "live")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Token)

	store.now = func() time.Time { return now.Add(10 * time.Minute) }
	assert.Equal(t, 1, store.CleanupExpired())
	assert.Equal(t, 1, store.Len())

	got, err = store.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Delete(ctx, "live"))
	require.NoError(t, store.Delete(ctx, "live"))
	assert.Equal(t, 0, store.Len())
}
