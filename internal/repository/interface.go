package repository

import (
	"context"

	"github.com/weiawesome/sync-party/internal/domain"
)

// Lookups return an error wrapping domain.ErrNotFound when the record is absent.

// UserRepository persists credential records.
type UserRepository interface {
	// Create assigns an id. A taken username yields domain.ErrDuplicateUsername.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// PartyRepository persists parties.
type PartyRepository interface {
	Create(ctx context.Context, party *domain.Party) error
	GetByID(ctx context.Context, id string) (*domain.Party, error)
	List(ctx context.Context) ([]domain.Party, error)
	ListByMember(ctx context.Context, userID string) ([]domain.Party, error)
	// Update loads the party under a row lock, lets mutate change it and
	// saves the result in the same transaction. An error from mutate aborts.
	Update(ctx context.Context, id string, mutate func(*domain.Party) error) (*domain.Party, error)
}

// MediaItemRepository persists media items. Mutations run load, authorize
// and write in one transaction and bump the item's version.
type MediaItemRepository interface {
	Create(ctx context.Context, item *domain.MediaItem) error
	GetByID(ctx context.Context, id string) (*domain.MediaItem, error)
	List(ctx context.Context) ([]domain.MediaItem, error)
	ListByParty(ctx context.Context, partyID string) ([]domain.MediaItem, error)
	ListByType(ctx context.Context, t domain.MediaType) ([]domain.MediaItem, error)

	// UpdateName renames the item if authorize accepts the locked record.
	UpdateName(ctx context.Context, id, name string, authorize func(*domain.MediaItem) error) (*domain.MediaItem, error)

	// Delete removes the row if authorize accepts the locked record, then
	// calls finalize before committing. A finalize error rolls the row back.
	Delete(ctx context.Context, id string, authorize, finalize func(*domain.MediaItem) error) (*domain.MediaItem, error)
}
