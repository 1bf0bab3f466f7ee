package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/pkg/database"
	"github.com/weiawesome/sync-party/pkg/log"
)

// GormMediaItemRepository implements MediaItemRepository using GORM.
type GormMediaItemRepository struct {
	db *gorm.DB
}

// NewGormMediaItemRepository creates a new GORM-based media item repository.
func NewGormMediaItemRepository(db *gorm.DB) *GormMediaItemRepository {
	return &GormMediaItemRepository{db: db}
}

func (r *GormMediaItemRepository) Create(ctx context.Context, item *domain.MediaItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Version = 1

	model := domain.MediaItemToModel(item)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldPartyID, item.PartyID).Msg("failed to create media item in db")
		return err
	}
	item.CreatedAt = model.CreatedAt
	item.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *GormMediaItemRepository) GetByID(ctx context.Context, id string) (*domain.MediaItem, error) {
	var model domain.MediaItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, id)
	}
	return model.ToDomain(), nil
}

func (r *GormMediaItemRepository) List(ctx context.Context) ([]domain.MediaItem, error) {
	return r.find(ctx, r.db.WithContext(ctx))
}

func (r *GormMediaItemRepository) ListByParty(ctx context.Context, partyID string) ([]domain.MediaItem, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("party_id = ?", partyID))
}

func (r *GormMediaItemRepository) ListByType(ctx context.Context, t domain.MediaType) ([]domain.MediaItem, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("type = ?", string(t)))
}

func (r *GormMediaItemRepository) find(ctx context.Context, q *gorm.DB) ([]domain.MediaItem, error) {
	var models []domain.MediaItemModel
	if err := q.Order("created_at ASC").Find(&models).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list media items from db")
		return nil, err
	}

	items := make([]domain.MediaItem, len(models))
	for i := range models {
		items[i] = *models[i].ToDomain()
	}
	return items, nil
}

func (r *GormMediaItemRepository) UpdateName(ctx context.Context, id, name string, authorize func(*domain.MediaItem) error) (*domain.MediaItem, error) {
	var out *domain.MediaItem

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := r.lockAndAuthorize(tx, id, authorize)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&domain.MediaItemModel{}).
			Where("id = ? AND version = ?", id, item.Version).
			Updates(map[string]interface{}{
				"name":       name,
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("media item %s: %w", id, domain.ErrConflict)
		}

		item.Name = name
		item.Version++
		item.UpdatedAt = now
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormMediaItemRepository) Delete(ctx context.Context, id string, authorize, finalize func(*domain.MediaItem) error) (*domain.MediaItem, error) {
	var out *domain.MediaItem

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := r.lockAndAuthorize(tx, id, authorize)
		if err != nil {
			return err
		}

		res := tx.Where("id = ? AND version = ?", id, item.Version).Delete(&domain.MediaItemModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("media item %s: %w", id, domain.ErrConflict)
		}

		if finalize != nil {
			if err := finalize(item); err != nil {
				return err
			}
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockAndAuthorize reads the row with FOR UPDATE where supported and runs
// authorize against it before any write happens.
func (r *GormMediaItemRepository) lockAndAuthorize(tx *gorm.DB, id string, authorize func(*domain.MediaItem) error) (*domain.MediaItem, error) {
	q := tx
	if database.SupportsRowLocks(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model domain.MediaItemModel
	if err := q.First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, id)
	}

	item := model.ToDomain()
	if authorize != nil {
		if err := authorize(item); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func notFound(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("media item %s: %w", id, domain.ErrNotFound)
	}
	return err
}
