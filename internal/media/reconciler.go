package media

import (
	"context"
	"fmt"
	"time"

	"github.com/weiawesome/sync-party/internal/audit"
	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/repository"
	"github.com/weiawesome/sync-party/pkg/log"
	"github.com/weiawesome/sync-party/pkg/storage"
)

const DefaultOrphanGrace = time.Hour

// Report summarizes one reconciliation pass.
type Report struct {
	Checked        int
	RecordsRemoved int
	BlobsRemoved   int
}

// Reconciler removes file records whose blob is gone and blobs that no
// record points at.
type Reconciler struct {
	repo  repository.MediaItemRepository
	blobs storage.Storage
	grace time.Duration
	now   func() time.Time
}

// NewReconciler creates a reconciler. Unreferenced blobs younger than grace
// are kept since an upload may still be creating their record.
func NewReconciler(repo repository.MediaItemRepository, blobs storage.Storage, grace time.Duration) *Reconciler {
	if grace <= 0 {
		grace = DefaultOrphanGrace
	}
	return &Reconciler{repo: repo, blobs: blobs, grace: grace, now: time.Now}
}

// Run performs one pass.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var rep Report
	l := log.Ctx(ctx)

	items, err := r.repo.ListByType(ctx, domain.MediaTypeFile)
	if err != nil {
		return rep, fmt.Errorf("list file items: %w", err)
	}

	referenced := make(map[string]struct{}, len(items))
	for _, item := range items {
		rep.Checked++

		ok, err := r.blobs.Exists(ctx, item.URL)
		if err != nil {
			l.Warn().Err(err).Str(log.FieldMediaID, item.ID).Msg("failed to check blob")
			referenced[item.URL] = struct{}{}
			continue
		}
		if ok {
			referenced[item.URL] = struct{}{}
			continue
		}

		if _, err := r.repo.Delete(ctx, item.ID, nil, nil); err != nil {
			l.Warn().Err(err).Str(log.FieldMediaID, item.ID).Msg("failed to remove record without blob")
			continue
		}
		rep.RecordsRemoved++
		audit.LogTarget(ctx, audit.ActionMediaPurge, item.OwnerID, item.ID, "removed file record without blob")
	}

	blobs, err := r.blobs.List(ctx, BlobPrefix)
	if err != nil {
		return rep, fmt.Errorf("list blobs: %w", err)
	}

	cutoff := r.now().Add(-r.grace)
	for _, b := range blobs {
		if _, ok := referenced[b.Key]; ok {
			continue
		}
		if b.LastModified.After(cutoff) {
			continue
		}
		if err := r.blobs.Delete(ctx, b.Key); err != nil {
			l.Warn().Err(err).Str(log.FieldBlobKey, b.Key).Msg("failed to remove orphan blob")
			continue
		}
		rep.BlobsRemoved++
	}

	l.Info().
		Int("checked", rep.Checked).
		Int("records_removed", rep.RecordsRemoved).
		Int("blobs_removed", rep.BlobsRemoved).
		Msg("media reconciliation finished")
	return rep, nil
}
