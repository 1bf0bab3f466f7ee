package domain

import "time"

// MediaType is the kind of shared reference.
type MediaType string

const (
	MediaTypeFile  MediaType = "file"
	MediaTypeLink  MediaType = "link"
	MediaTypeEmbed MediaType = "embed"
)

// MediaItem is a media reference shared with a party.
type MediaItem struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner"`
	Type      MediaType `json:"type"`
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	PartyID   string    `json:"partyId"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Owner implements guard.Resource.
func (m *MediaItem) Owner() string {
	return m.OwnerID
}

// NewMediaItem is the create payload. For file items URL is the blob key.
type NewMediaItem struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
	Name string    `json:"name"`
}

// MediaItemPatch carries the mutable fields. Only name can change.
type MediaItemPatch struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// CreateMediaItemRequest is the HTTP body for adding a media item.
type CreateMediaItemRequest struct {
	MediaItem NewMediaItem `json:"mediaItem"`
	PartyID   string       `json:"partyId"`
}

// Upload describes an incoming file for a new file item.
type Upload struct {
	PartyID     string
	Name        string
	Filename    string
	ContentType string
	Size        int64
}
