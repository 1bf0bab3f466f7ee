// Package guard decides whether a principal may mutate an owned resource.
package guard

import (
	"fmt"

	"github.com/weiawesome/sync-party/internal/domain"
)

// Decision is the outcome of Decide.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// Resource is anything with an immutable owner.
type Resource interface {
	Owner() string
}

// Decide allows admins and the resource owner. A nil principal or
// resource is denied.
func Decide(p *domain.Principal, r Resource) Decision {
	if p == nil || r == nil {
		return Deny
	}
	if p.Role == domain.RoleAdmin {
		return Allow
	}
	if p.ID != "" && r.Owner() == p.ID {
		return Allow
	}
	return Deny
}

// Check returns domain.ErrNotAuthorized when Decide denies.
func Check(p *domain.Principal, r Resource) error {
	if Decide(p, r) == Deny {
		who := "anonymous"
		if p != nil {
			who = p.ID
		}
		return fmt.Errorf("%w: %s does not own resource", domain.ErrNotAuthorized, who)
	}
	return nil
}
