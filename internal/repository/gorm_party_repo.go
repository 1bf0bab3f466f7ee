package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/pkg/database"
	"github.com/weiawesome/sync-party/pkg/log"
)

// GormPartyRepository implements PartyRepository using GORM.
type GormPartyRepository struct {
	db *gorm.DB
}

// NewGormPartyRepository creates a new GORM-based party repository.
func NewGormPartyRepository(db *gorm.DB) *GormPartyRepository {
	return &GormPartyRepository{db: db}
}

func (r *GormPartyRepository) Create(ctx context.Context, party *domain.Party) error {
	if party.ID == "" {
		party.ID = uuid.NewString()
	}
	if party.Members == nil {
		party.Members = []string{}
	}

	model := domain.PartyToModel(party)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldPartyID, party.ID).Msg("failed to create party in db")
		return err
	}
	party.CreatedAt = model.CreatedAt
	party.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *GormPartyRepository) GetByID(ctx context.Context, id string) (*domain.Party, error) {
	var model domain.PartyModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("party %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormPartyRepository) List(ctx context.Context) ([]domain.Party, error) {
	var models []domain.PartyModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return partiesToDomain(models), nil
}

// ListByMember prefilters with LIKE and confirms in memory, since members
// is JSON text with no portable containment operator.
func (r *GormPartyRepository) ListByMember(ctx context.Context, userID string) ([]domain.Party, error) {
	var models []domain.PartyModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ? OR members LIKE ?", userID, "%\""+userID+"\"%").
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.Party, 0, len(models))
	for _, m := range models {
		if m.OwnerID == userID || m.Members.Contains(userID) {
			out = append(out, *m.ToDomain())
		}
	}
	return out, nil
}

func (r *GormPartyRepository) Update(ctx context.Context, id string, mutate func(*domain.Party) error) (*domain.Party, error) {
	var updated *domain.Party

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if database.SupportsRowLocks(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var model domain.PartyModel
		if err := q.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("party %s: %w", id, domain.ErrNotFound)
			}
			return err
		}

		party := model.ToDomain()
		if err := mutate(party); err != nil {
			return err
		}

		next := domain.PartyToModel(party)
		err := tx.Model(&domain.PartyModel{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":    next.Name,
			"active":  next.Active,
			"members": next.Members,
		}).Error
		if err != nil {
			return err
		}

		updated = party
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func partiesToDomain(models []domain.PartyModel) []domain.Party {
	out := make([]domain.Party, len(models))
	for i := range models {
		out[i] = *models[i].ToDomain()
	}
	return out
}
