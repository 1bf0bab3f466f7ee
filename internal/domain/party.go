package domain

import "time"

// Party groups principals that share media items and a chat room.
type Party struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	Active    bool      `json:"active"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasMember reports whether userID is a member.
func (p *Party) HasMember(userID string) bool {
	for _, m := range p.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Owner implements guard.Resource.
func (p *Party) Owner() string {
	return p.OwnerID
}

// CreatePartyRequest is the admin payload for a new party.
type CreatePartyRequest struct {
	Name    string   `json:"name" validate:"required,min=1,max=100"`
	OwnerID string   `json:"ownerId" validate:"omitempty,max=36"`
	Members []string `json:"members" validate:"omitempty,dive,required,max=36"`
	Active  *bool    `json:"active"`
}

// SetActiveRequest toggles a party's activity flag.
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// AddMemberRequest adds a member by user id or username.
type AddMemberRequest struct {
	UserID   string `json:"userId" validate:"required_without=Username,omitempty,max=36"`
	Username string `json:"username" validate:"required_without=UserID,omitempty,max=50"`
}
