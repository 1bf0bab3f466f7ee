// Package media manages shared media references and the blobs behind file
// items.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weiawesome/sync-party/internal/audit"
	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/guard"
	"github.com/weiawesome/sync-party/internal/party"
	"github.com/weiawesome/sync-party/internal/repository"
	"github.com/weiawesome/sync-party/internal/validation"
	"github.com/weiawesome/sync-party/pkg/log"
	"github.com/weiawesome/sync-party/pkg/storage"
)

// BlobPrefix is the storage prefix for uploaded files.
const BlobPrefix = "parties/"

const DefaultMaxUploadBytes int64 = 512 << 20

// URLExpiry bounds presigned playback URLs.
const URLExpiry = 15 * time.Minute

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// PartyLookup loads a party by id.
type PartyLookup interface {
	Lookup(ctx context.Context, id string) (*domain.Party, error)
}

// Config tunes the registry.
type Config struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// Registry is the CRUD surface over media items.
type Registry struct {
	repo     repository.MediaItemRepository
	parties  PartyLookup
	blobs    storage.Storage
	maxBytes int64
}

// NewRegistry creates a registry.
func NewRegistry(repo repository.MediaItemRepository, parties PartyLookup, blobs storage.Storage, cfg Config) *Registry {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Registry{
		repo:     repo,
		parties:  parties,
		blobs:    blobs,
		maxBytes: cfg.MaxUploadBytes,
	}
}

// MaxUploadBytes returns the upload size cap.
func (r *Registry) MaxUploadBytes() int64 {
	return r.maxBytes
}

// Create adds a link or embed item to a party. File items come from Upload.
func (r *Registry) Create(ctx context.Context, item *domain.NewMediaItem, p *domain.Principal, partyID string) (*domain.MediaItem, error) {
	if p == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if err := ValidateSchema(item); err != nil {
		return nil, err
	}
	if item.Type == domain.MediaTypeFile {
		return nil, fmt.Errorf("%w: file items are created by upload", domain.ErrValidation)
	}

	if _, err := r.participate(ctx, p, partyID); err != nil {
		return nil, err
	}

	created := &domain.MediaItem{
		OwnerID: p.ID,
		Type:    item.Type,
		URL:     item.URL,
		Name:    item.Name,
		PartyID: partyID,
	}
	if err := r.repo.Create(ctx, created); err != nil {
		return nil, err
	}

	audit.LogTarget(ctx, audit.ActionMediaCreate, p.ID, created.ID, "media item created")
	return created, nil
}

// Edit renames an item. Owner or admin only.
func (r *Registry) Edit(ctx context.Context, id string, patch *domain.MediaItemPatch, p *domain.Principal) (*domain.MediaItem, error) {
	if p == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	item, err := r.repo.UpdateName(ctx, id, patch.Name, func(item *domain.MediaItem) error {
		return guard.Check(p, item)
	})
	if err != nil {
		return nil, err
	}

	audit.LogTarget(ctx, audit.ActionMediaEdit, p.ID, id, "media item renamed")
	return item, nil
}

// Delete removes an item. For file items the blob goes first, inside the
// record's transaction, so a failed blob delete keeps both.
func (r *Registry) Delete(ctx context.Context, id string, p *domain.Principal) error {
	if p == nil {
		return domain.ErrNotAuthenticated
	}

	_, err := r.repo.Delete(ctx, id,
		func(item *domain.MediaItem) error {
			return guard.Check(p, item)
		},
		func(item *domain.MediaItem) error {
			if item.Type != domain.MediaTypeFile {
				return nil
			}
			if err := r.blobs.Delete(ctx, item.URL); err != nil {
				return fmt.Errorf("delete blob %s: %w", item.URL, err)
			}
			return nil
		},
	)
	if err != nil {
		return err
	}

	audit.LogTarget(ctx, audit.ActionMediaDelete, p.ID, id, "media item deleted")
	return nil
}

// ListAll returns every item. Admin only.
func (r *Registry) ListAll(ctx context.Context, p *domain.Principal) ([]domain.MediaItem, error) {
	if p == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if !p.IsAdmin() {
		return nil, fmt.Errorf("%w: admin only", domain.ErrNotAuthorized)
	}
	return r.repo.List(ctx)
}

// ListByParty returns a party's items to its members and admins.
func (r *Registry) ListByParty(ctx context.Context, partyID string, p *domain.Principal) ([]domain.MediaItem, error) {
	pt, err := r.parties.Lookup(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if err := party.CanView(p, pt); err != nil {
		return nil, err
	}
	return r.repo.ListByParty(ctx, partyID)
}

// PlaybackURL returns where members fetch an item from: the stored URL for
// links and embeds, a storage URL for files.
func (r *Registry) PlaybackURL(ctx context.Context, id string, p *domain.Principal) (string, error) {
	if p == nil {
		return "", domain.ErrNotAuthenticated
	}
	item, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	pt, err := r.parties.Lookup(ctx, item.PartyID)
	if err != nil {
		return "", err
	}
	if err := party.CanView(p, pt); err != nil {
		return "", err
	}
	if item.Type != domain.MediaTypeFile {
		return item.URL, nil
	}

	u, err := r.blobs.GetURL(ctx, item.URL, URLExpiry)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("blob for %s: %w", id, domain.ErrNotFound)
	}
	return u, err
}

// Upload stores body as a blob and creates the file item for it. The blob
// is removed again when the record cannot be created.
func (r *Registry) Upload(ctx context.Context, p *domain.Principal, up *domain.Upload, body io.Reader) (*domain.MediaItem, error) {
	if p == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if up.Size > r.maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, r.maxBytes)
	}

	name := strings.TrimSpace(up.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(up.Filename), filepath.Ext(up.Filename))
	}

	key := BlobKey(up.PartyID, up.Filename)
	if err := ValidateSchema(&domain.NewMediaItem{Type: domain.MediaTypeFile, URL: key, Name: name}); err != nil {
		return nil, err
	}
	if _, err := r.participate(ctx, p, up.PartyID); err != nil {
		return nil, err
	}

	l := log.Ctx(ctx)
	if err := r.blobs.Write(ctx, key, io.LimitReader(body, r.maxBytes+1), up.Size, up.ContentType); err != nil {
		l.Error().Err(err).Str(log.FieldBlobKey, key).Msg("failed to write blob")
		return nil, err
	}

	item := &domain.MediaItem{
		OwnerID: p.ID,
		Type:    domain.MediaTypeFile,
		URL:     key,
		Name:    name,
		PartyID: up.PartyID,
	}
	if err := r.repo.Create(ctx, item); err != nil {
		if derr := r.blobs.Delete(ctx, key); derr != nil {
			l.Warn().Err(derr).Str(log.FieldBlobKey, key).Msg("failed to remove blob after create failure")
		}
		return nil, err
	}

	audit.LogTarget(ctx, audit.ActionMediaUpload, p.ID, item.ID, "file uploaded")
	return item, nil
}

// BlobKey returns a fresh key under the party's prefix, keeping a sane
// lowercase extension from filename.
func BlobKey(partyID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return path.Join(strings.TrimSuffix(BlobPrefix, "/"), partyID, uuid.NewString()+ext)
}

func (r *Registry) participate(ctx context.Context, p *domain.Principal, partyID string) (*domain.Party, error) {
	if strings.TrimSpace(partyID) == "" {
		return nil, fmt.Errorf("%w: partyId is required", domain.ErrValidation)
	}

	pt, err := r.parties.Lookup(ctx, partyID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			l := log.Ctx(ctx)
			l.Error().Err(err).Str(log.FieldPartyID, partyID).Msg("failed to load party")
		}
		return nil, err
	}
	if err := party.CanParticipate(p, pt); err != nil {
		return nil, err
	}
	return pt, nil
}
