package domain

import (
	"time"

	"github.com/weiawesome/sync-party/pkg/database"
)

// UserModel is the GORM model for users table.
type UserModel struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	Username     string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	Role         string    `gorm:"type:varchar(16);not null;default:'user'"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string { return "users" }

func (m *UserModel) ToDomain() *User {
	return &User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Role:         Role(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func UserToModel(u *User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// PartyModel is the GORM model for parties table.
type PartyModel struct {
	ID        string               `gorm:"type:varchar(36);primaryKey"`
	Name      string               `gorm:"type:varchar(100);not null"`
	OwnerID   string               `gorm:"type:varchar(36);index"`
	Active    bool                 `gorm:"not null;default:false"`
	Members   database.StringArray `gorm:"type:text"`
	CreatedAt time.Time            `gorm:"autoCreateTime"`
	UpdatedAt time.Time            `gorm:"autoUpdateTime"`
}

func (PartyModel) TableName() string { return "parties" }

func (m *PartyModel) ToDomain() *Party {
	members := []string(m.Members)
	if members == nil {
		members = []string{}
	}
	return &Party{
		ID:        m.ID,
		Name:      m.Name,
		OwnerID:   m.OwnerID,
		Active:    m.Active,
		Members:   members,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func PartyToModel(p *Party) *PartyModel {
	return &PartyModel{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		Active:    p.Active,
		Members:   database.StringArray(p.Members),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// MediaItemModel is the GORM model for media_items table.
type MediaItemModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	OwnerID   string    `gorm:"type:varchar(36);index;not null"`
	Type      string    `gorm:"type:varchar(16);index;not null"`
	URL       string    `gorm:"type:varchar(2048);not null"`
	Name      string    `gorm:"type:varchar(255);not null"`
	PartyID   string    `gorm:"type:varchar(36);index;not null"`
	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (MediaItemModel) TableName() string { return "media_items" }

func (m *MediaItemModel) ToDomain() *MediaItem {
	return &MediaItem{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Type:      MediaType(m.Type),
		URL:       m.URL,
		Name:      m.Name,
		PartyID:   m.PartyID,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func MediaItemToModel(i *MediaItem) *MediaItemModel {
	return &MediaItemModel{
		ID:        i.ID,
		OwnerID:   i.OwnerID,
		Type:      string(i.Type),
		URL:       i.URL,
		Name:      i.Name,
		PartyID:   i.PartyID,
		Version:   i.Version,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// Models lists every table for migration.
func Models() []interface{} {
	return []interface{}{&UserModel{}, &PartyModel{}, &MediaItemModel{}}
}
