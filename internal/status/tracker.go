// Package status records the per-repository sync watermark: when a repository
// was last synchronized, the newest commit seen and the last error.
package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/scm-mirror/internal/store"
)

// Tracker reads and writes repository sync statuses.
type Tracker struct {
	statuses store.SyncStatuses
}

// NewTracker creates a tracker backed by st
func NewTracker(st store.Store) *Tracker {
	return &Tracker{statuses: st.SyncStatuses()}
}

// MarkSynced records a successful pass. A non-empty sha replaces the commit
// watermark; an empty one keeps the previous watermark.
func (t *Tracker) MarkSynced(ctx context.Context, repo *store.Repository, when time.Time, sha string) error {
	st, err := t.load(ctx, repo)
	if err != nil {
		return err
	}
	st.LastSyncedAt = &when
	if sha != "" {
		st.LastSyncedCommitSHA = sha
	}
	st.ErrorMessage = ""
	st.Revive()
	if err := t.statuses.Save(ctx, st); err != nil {
		return fmt.Errorf("failed to mark repository %d synced: %w", repo.ID, err)
	}
	return nil
}

// MarkFailure records a failed pass that started at attemptStart. The commit
// watermark is left untouched.
func (t *Tracker) MarkFailure(ctx context.Context, repo *store.Repository, attemptStart time.Time, message string) error {
	st, err := t.load(ctx, repo)
	if err != nil {
		return err
	}
	st.LastSyncedAt = &attemptStart
	st.ErrorMessage = message
	st.Revive()
	if err := t.statuses.Save(ctx, st); err != nil {
		return fmt.Errorf("failed to mark repository %d failed: %w", repo.ID, err)
	}
	return nil
}

// MarkDeleted tombstones the repository's status. It is a no-op when the
// repository has never been tracked.
func (t *Tracker) MarkDeleted(ctx context.Context, repo *store.Repository, when time.Time) error {
	st, err := t.statuses.FindByRepository(ctx, repo.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load sync status of repository %d: %w", repo.ID, err)
	}
	if st.IsDeleted() {
		return nil
	}
	st.Tombstone(when)
	if err := t.statuses.Save(ctx, st); err != nil {
		return fmt.Errorf("failed to tombstone sync status of repository %d: %w", repo.ID, err)
	}
	return nil
}

// FindActiveByOrganization lists active statuses of the organization's active
// repositories, ordered by repository id.
func (t *Tracker) FindActiveByOrganization(ctx context.Context, orgID int64) ([]store.RepositorySyncStatus, error) {
	return t.statuses.ListActiveByOrganization(ctx, orgID)
}

// load returns the existing status (tombstoned or not) or a new unsaved one.
func (t *Tracker) load(ctx context.Context, repo *store.Repository) (*store.RepositorySyncStatus, error) {
	if repo == nil || repo.ID == 0 {
		return nil, errors.New("repository must be persisted before its status is tracked")
	}
	st, err := t.statuses.FindByRepository(ctx, repo.ID)
	if errors.Is(err, store.ErrNotFound) {
		return &store.RepositorySyncStatus{RepositoryID: repo.ID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync status of repository %d: %w", repo.ID, err)
	}
	return st, nil
}
