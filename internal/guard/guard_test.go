package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weiawesome/sync-party/internal/domain"
)

func TestDecide(t *testing.T) {
	item := &domain.MediaItem{ID: "m1", OwnerID: "alice"}

	tests := []struct {
		name      string
		principal *domain.Principal
		want      Decision
	}{
		{"owner", &domain.Principal{ID: "alice", Role: domain.RoleUser}, Allow},
		{"other user", &domain.Principal{ID: "bob", Role: domain.RoleUser}, Deny},
		{"admin non-owner", &domain.Principal{ID: "root", Role: domain.RoleAdmin}, Allow},
		{"admin owner", &domain.Principal{ID: "alice", Role: domain.RoleAdmin}, Allow},
		{"anonymous", nil, Deny},
		{"empty id", &domain.Principal{Role: domain.RoleUser}, Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.principal, item))
		})
	}
}

func TestDecide_UnownedResourceOnlyAdmin(t *testing.T) {
	orphan := &domain.MediaItem{ID: "m2"}

	assert.Equal(t, Deny, Decide(&domain.Principal{Role: domain.RoleUser}, orphan))
	assert.Equal(t, Allow, Decide(&domain.Principal{ID: "x", Role: domain.RoleAdmin}, orphan))
}

func TestCheck(t *testing.T) {
	party := &domain.Party{ID: "p1", OwnerID: "alice"}

	assert.NoError(t, Check(&domain.Principal{ID: "alice"}, party))
	assert.ErrorIs(t, Check(&domain.Principal{ID: "bob"}, party), domain.ErrNotAuthorized)
	assert.ErrorIs(t, Check(nil, party), domain.ErrNotAuthorized)
}
