package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/sync-party/internal/auth"
	"github.com/weiawesome/sync-party/internal/config"
	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/media"
	"github.com/weiawesome/sync-party/internal/party"
	"github.com/weiawesome/sync-party/internal/repository"
	"github.com/weiawesome/sync-party/pkg/database"
	"github.com/weiawesome/sync-party/pkg/storage"
)

// operator is the identity partyctl acts as. It shows up in audit logs.
var operator = &domain.Principal{ID: "partyctl", Username: "partyctl", Role: domain.RoleAdmin}

// Env is the service graph commands run against.
type Env struct {
	Users      repository.UserRepository
	Authority  *auth.Authority
	Parties    *party.Service
	Reconciler *media.Reconciler

	closers []func() error
}

// NewEnv wires services over an open database and blob store.
func NewEnv(db *gorm.DB, blobs storage.Storage, hasher auth.Hasher, orphanGrace time.Duration) (*Env, error) {
	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}

	users := repository.NewGormUserRepository(db)
	items := repository.NewGormMediaItemRepository(db)

	signer, err := auth.NewTokenSigner("", "partyctl")
	if err != nil {
		return nil, err
	}
	authority, err := auth.NewAuthority(users, hasher, signer, auth.NewMemorySessionStore(), 0)
	if err != nil {
		return nil, err
	}

	return &Env{
		Users:      users,
		Authority:  authority,
		Parties:    party.NewService(repository.NewGormPartyRepository(db), users),
		Reconciler: media.NewReconciler(items, blobs, orphanGrace),
	}, nil
}

// OpenEnv loads the server config and connects to its database and
// storage.
func OpenEnv(ctx context.Context, opts *RootOptions) (*Env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	env, err := NewEnv(db, blobs, auth.NewBcryptHasher(cfg.Session.BcryptCost), cfg.Media.OrphanGrace)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	env.closers = append(env.closers, sqlDB.Close)
	return env, nil
}

func (e *Env) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// userID resolves a username to its id.
func (e *Env) userID(ctx context.Context, username string) (string, error) {
	u, err := e.Users.GetByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("user %q: %w", username, err)
	}
	return u.ID, nil
}
