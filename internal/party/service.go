package party

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/sync-party/internal/audit"
	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/guard"
	"github.com/weiawesome/sync-party/internal/repository"
	"github.com/weiawesome/sync-party/internal/validation"
	"github.com/weiawesome/sync-party/pkg/log"
)

// Service manages party lifecycle and membership.
type Service struct {
	repo  repository.PartyRepository
	users repository.UserRepository
	group singleflight.Group
}

// NewService creates a party service.
func NewService(repo repository.PartyRepository, users repository.UserRepository) *Service {
	return &Service{repo: repo, users: users}
}

// Lookup loads a party. Concurrent lookups of the same id share one query,
// which outlives any single caller's cancellation.
func (s *Service) Lookup(ctx context.Context, id string) (*domain.Party, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(id, func() (interface{}, error) {
		return s.repo.GetByID(shared, id)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	p := *res.Val.(*domain.Party)
	p.Members = append([]string(nil), p.Members...)
	return &p, nil
}

// CanParticipate returns domain.ErrNotAuthorized unless the party is active
// and the principal is a member or an admin.
func CanParticipate(p *domain.Principal, party *domain.Party) error {
	if p == nil {
		return domain.ErrNotAuthenticated
	}
	if !party.Active {
		return fmt.Errorf("%w: party %s is not active", domain.ErrNotAuthorized, party.ID)
	}
	if !p.IsAdmin() && !party.HasMember(p.ID) {
		return fmt.Errorf("%w: %s is not a member of party %s", domain.ErrNotAuthorized, p.ID, party.ID)
	}
	return nil
}

// CanView allows members, the owner and admins regardless of activity.
func CanView(p *domain.Principal, party *domain.Party) error {
	if p == nil {
		return domain.ErrNotAuthenticated
	}
	if p.IsAdmin() || party.OwnerID == p.ID || party.HasMember(p.ID) {
		return nil
	}
	return fmt.Errorf("%w: %s cannot view party %s", domain.ErrNotAuthorized, p.ID, party.ID)
}

// Create adds a party. Only admins may create parties. The owner defaults
// to the caller and is always a member.
func (s *Service) Create(ctx context.Context, p *domain.Principal, req *domain.CreatePartyRequest) (*domain.Party, error) {
	if !p.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins create parties", domain.ErrNotAuthorized)
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	ownerID := req.OwnerID
	if ownerID == "" {
		ownerID = p.ID
	}
	if ownerID != p.ID {
		if _, err := s.users.GetByID(ctx, ownerID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown owner %s", domain.ErrValidation, ownerID)
			}
			return nil, err
		}
	}

	party := &domain.Party{
		Name:    req.Name,
		OwnerID: ownerID,
		Active:  req.Active == nil || *req.Active,
		Members: []string{ownerID},
	}
	for _, m := range req.Members {
		if !party.HasMember(m) {
			party.Members = append(party.Members, m)
		}
	}

	if err := s.repo.Create(ctx, party); err != nil {
		return nil, err
	}

	audit.LogTarget(ctx, audit.ActionPartyCreate, p.ID, party.ID, "party created")
	return party, nil
}

// Get returns a party the caller may view.
func (s *Service) Get(ctx context.Context, id string, p *domain.Principal) (*domain.Party, error) {
	party, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanView(p, party); err != nil {
		return nil, err
	}
	return party, nil
}

// ListMine returns every party for admins and the caller's parties otherwise.
func (s *Service) ListMine(ctx context.Context, p *domain.Principal) ([]domain.Party, error) {
	if p == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if p.IsAdmin() {
		return s.repo.List(ctx)
	}
	return s.repo.ListByMember(ctx, p.ID)
}

// SetActive opens or closes a party. Owner or admin only.
func (s *Service) SetActive(ctx context.Context, id string, active bool, p *domain.Principal) (*domain.Party, error) {
	party, err := s.repo.Update(ctx, id, func(party *domain.Party) error {
		if err := guard.Check(p, party); err != nil {
			return err
		}
		party.Active = active
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.LogWithDetail(ctx, audit.ActionPartySetActive, p.ID, fmt.Sprintf("%s active=%t", id, active), "party activity changed")
	return party, nil
}

// AddMember adds a user by id or username. Owner or admin only. Adding an
// existing member is a no-op.
func (s *Service) AddMember(ctx context.Context, id string, req *domain.AddMemberRequest, p *domain.Principal) (*domain.Party, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.resolveUser(ctx, req)
	if err != nil {
		return nil, err
	}

	party, err := s.repo.Update(ctx, id, func(party *domain.Party) error {
		if err := guard.Check(p, party); err != nil {
			return err
		}
		if !party.HasMember(user.ID) {
			party.Members = append(party.Members, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.LogWithDetail(ctx, audit.ActionPartyAddMember, p.ID, id+" +"+user.ID, "party member added")
	return party, nil
}

// RemoveMember drops a member. The owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, id, userID string, p *domain.Principal) (*domain.Party, error) {
	party, err := s.repo.Update(ctx, id, func(party *domain.Party) error {
		if err := guard.Check(p, party); err != nil {
			return err
		}
		if userID == party.OwnerID {
			return fmt.Errorf("%w: cannot remove the party owner", domain.ErrValidation)
		}
		kept := party.Members[:0]
		for _, m := range party.Members {
			if m != userID {
				kept = append(kept, m)
			}
		}
		party.Members = kept
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.LogWithDetail(ctx, audit.ActionPartyRemoveMember, p.ID, id+" -"+userID, "party member removed")
	return party, nil
}

func (s *Service) resolveUser(ctx context.Context, req *domain.AddMemberRequest) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	if req.UserID != "" {
		user, err = s.users.GetByID(ctx, req.UserID)
	} else {
		user, err = s.users.GetByUsername(ctx, req.Username)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			l := log.Ctx(ctx)
			l.Error().Err(err).Msg("failed to resolve party member")
		}
		return nil, err
	}
	return user, nil
}
