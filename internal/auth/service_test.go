package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/repository"
	"github.com/weiawesome/sync-party/pkg/database"
)

func newTestAuthority(t *testing.T) (*Authority, *MemorySessionStore) {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: filepath.Join(t.TempDir(), "auth.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	signer, err := NewTokenSigner("test-secret", "sync-party")
	require.NoError(t, err)
	store := NewMemorySessionStore()

	a, err := NewAuthority(repository.NewGormUserRepository(db), NewBcryptHasher(bcrypt.MinCost), signer, store, time.Hour)
	require.NoError(t, err)
	return a, store
}

func TestAuthority_RegisterLoginLogout(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(t)

	p, err := a.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, p.Role)

	sess, err := a.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)

	got, ok := a.Authenticate(ctx, sess.Token)
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "alice", got.Username)

	a.Logout(ctx, sess.Token)
	_, ok = a.Authenticate(ctx, sess.Token)
	assert.False(t, ok)

	// Idempotent.
	a.Logout(ctx, sess.Token)
	a.Logout(ctx, "garbage")
}

func TestAuthority_LoginFailuresShareOneError(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(t)

	_, err := a.Register(ctx, "alice", "secret1")
	require.NoError(t, err)

	_, err = a.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = a.Login(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthority_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"short username", "al", "secret1"},
		{"bad characters", "al ice", "secret1"},
		{"short password", "alice", "12345"},
		{"empty password", "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Register(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err := a.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	_, err = a.Register(ctx, "alice", "another1")
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

func TestAuthority_AuthenticateRejects(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAuthority(t)

	_, err := a.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	sess, err := a.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	_, ok := a.Authenticate(ctx, "")
	assert.False(t, ok)
	_, ok = a.Authenticate(ctx, sess.Token+"x")
	assert.False(t, ok)

	other, err := NewTokenSigner("other-secret", "sync-party")
	require.NoError(t, err)
	forged, err := other.Sign(sess.ID, sess.Principal.ID, sess.ExpiresAt)
	require.NoError(t, err)
	_, ok = a.Authenticate(ctx, forged)
	assert.False(t, ok)

	// Session expired in the store while the token is still valid.
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, ok = a.Authenticate(ctx, sess.Token)
	assert.False(t, ok)
}

func TestAuthority_CreateAdmin(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(t)

	p, err := a.CreateUser(ctx, "root", "secret1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())

	_, err = a.CreateUser(ctx, "bob", "secret1", domain.Role("owner"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
