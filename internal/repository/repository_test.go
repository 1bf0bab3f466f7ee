package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestUserRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewGormUserRepository(newTestDB(t))

	u := &domain.User{Username: "alice", PasswordHash: "h"}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, domain.RoleUser, u.Role)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	repo := NewGormUserRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "h"}))
	err := repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "h2"})
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

func TestPartyRepository_UpdateAndMembership(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPartyRepository(newTestDB(t))

	p := &domain.Party{Name: "movie night", OwnerID: "owner", Members: []string{"owner"}}
	require.NoError(t, repo.Create(ctx, p))

	updated, err := repo.Update(ctx, p.ID, func(p *domain.Party) error {
		p.Active = true
		p.Members = append(p.Members, "bob")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.Active)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owner", "bob"}, got.Members)

	mine, err := repo.ListByMember(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, p.ID, mine[0].ID)

	none, err := repo.ListByMember(ctx, "bo")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPartyRepository_UpdateAbortsOnMutateError(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPartyRepository(newTestDB(t))

	p := &domain.Party{Name: "p"}
	require.NoError(t, repo.Create(ctx, p))

	boom := errors.New("boom")
	_, err := repo.Update(ctx, p.ID, func(p *domain.Party) error {
		p.Active = true
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = repo.Update(ctx, "missing", func(*domain.Party) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func seedItem(t *testing.T, repo *GormMediaItemRepository, owner string) *domain.MediaItem {
	t.Helper()
	item := &domain.MediaItem{
		OwnerID: owner,
		Type:    domain.MediaTypeLink,
		URL:     "https://example.com/v",
		Name:    "clip",
		PartyID: "p1",
	}
	require.NoError(t, repo.Create(context.Background(), item))
	return item
}

func TestMediaItemRepository_UpdateNameBumpsVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMediaItemRepository(newTestDB(t))
	item := seedItem(t, repo, "alice")
	assert.Equal(t, int64(1), item.Version)

	got, err := repo.UpdateName(ctx, item.ID, "renamed", nil)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, int64(2), got.Version)

	stored, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Name)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, "alice", stored.OwnerID)
}

func TestMediaItemRepository_AuthorizeRejectsBeforeWrite(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMediaItemRepository(newTestDB(t))
	item := seedItem(t, repo, "alice")

	deny := func(*domain.MediaItem) error { return domain.ErrNotAuthorized }

	_, err := repo.UpdateName(ctx, item.ID, "x", deny)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = repo.Delete(ctx, item.ID, deny, nil)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	stored, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "clip", stored.Name)
}

func TestMediaItemRepository_DeleteRollsBackOnFinalizeError(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMediaItemRepository(newTestDB(t))
	item := seedItem(t, repo, "alice")

	_, err := repo.Delete(ctx, item.ID, nil, func(*domain.MediaItem) error {
		return errors.New("blob store down")
	})
	require.Error(t, err)

	_, err = repo.GetByID(ctx, item.ID)
	assert.NoError(t, err, "record must survive a failed finalize")

	deleted, err := repo.Delete(ctx, item.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, item.ID, deleted.ID)

	_, err = repo.GetByID(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMediaItemRepository_MissingItem(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMediaItemRepository(newTestDB(t))

	_, err := repo.UpdateName(ctx, "nope", "x", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.Delete(ctx, "nope", nil, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMediaItemRepository_Listing(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMediaItemRepository(newTestDB(t))
	seedItem(t, repo, "alice")
	require.NoError(t, repo.Create(ctx, &domain.MediaItem{
		OwnerID: "bob", Type: domain.MediaTypeFile, URL: "parties/p2/a.mp4", Name: "a", PartyID: "p2",
	}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byParty, err := repo.ListByParty(ctx, "p2")
	require.NoError(t, err)
	require.Len(t, byParty, 1)
	assert.Equal(t, "bob", byParty[0].OwnerID)

	files, err := repo.ListByType(ctx, domain.MediaTypeFile)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "parties/p2/a.mp4", files[0].URL)
}
