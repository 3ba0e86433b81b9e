// Package cleanup removes an item's binary copies from the local staging
// filesystem and the remote storage backend.
//
// Cleanup is strictly best effort: every failure is recorded and logged, none
// is ever raised. The database record is authoritative for whether an item
// exists, so a stale remote reference must never be able to block a material
// or folder from being deleted. Callers run their existence checks first and
// delete the database records after cleanup regardless of the outcomes here.
package cleanup

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/coursestack/coursestack/internal/domain/models"
	"go.uber.org/zap"
)

// RemoteStore deletes an object from the storage backend by key.
// waffle's storage.Store satisfies this.
type RemoteStore interface {
	Delete(ctx context.Context, key string) error
}

// Tier identifies which storage tier an outcome refers to.
type Tier string

const (
	TierLocal  Tier = "local"
	TierRemote Tier = "remote"
)

// Outcome records one removal attempt. Skipped is true when there was
// nothing to do (no local path, file already gone, no deletion key).
type Outcome struct {
	Tier    Tier
	Target  string
	Skipped bool
	Err     error
}

// Cleaner performs per-item cleanup against a remote store and the local
// filesystem.
type Cleaner struct {
	remote RemoteStore
	logger *zap.Logger
}

// New creates a Cleaner.
func New(remote RemoteStore, logger *zap.Logger) *Cleaner {
	return &Cleaner{remote: remote, logger: logger}
}

// Item removes the local and remote copies of one item. The two attempts are
// independent; a local failure does not stop the remote attempt. All outcomes
// are returned for the caller's records, failures are logged here.
func (c *Cleaner) Item(ctx context.Context, item models.Item) []Outcome {
	outcomes := make([]Outcome, 0, 2)
	outcomes = append(outcomes, c.removeLocal(item))
	outcomes = append(outcomes, c.removeRemote(ctx, item))

	for _, o := range outcomes {
		if o.Err != nil {
			c.logger.Warn("item cleanup failed",
				zap.String("item_id", item.ID.Hex()),
				zap.String("tier", string(o.Tier)),
				zap.String("target", o.Target),
				zap.Error(o.Err),
			)
		}
	}
	return outcomes
}

// removeLocal deletes the staging copy, if any. A missing path or an already
// deleted file is a skip, not a failure.
func (c *Cleaner) removeLocal(item models.Item) Outcome {
	if item.LocalPath == nil || *item.LocalPath == "" {
		return Outcome{Tier: TierLocal, Skipped: true}
	}
	path := *item.LocalPath

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Outcome{Tier: TierLocal, Target: path, Skipped: true}
	}
	if err := os.Remove(path); err != nil {
		return Outcome{Tier: TierLocal, Target: path, Err: err}
	}
	return Outcome{Tier: TierLocal, Target: path}
}

// removeRemote deletes the storage-backend copy using the item's deletion
// key. Items with no resolvable key (notes, links) are skipped.
func (c *Cleaner) removeRemote(ctx context.Context, item models.Item) Outcome {
	key := DeletionKey(item)
	if key == "" {
		return Outcome{Tier: TierRemote, Skipped: true}
	}
	if err := c.remote.Delete(ctx, key); err != nil {
		return Outcome{Tier: TierRemote, Target: key, Err: err}
	}
	return Outcome{Tier: TierRemote, Target: key}
}

// DeletionKey resolves the key used to delete an item's remote copy. New
// uploads store the key explicitly; legacy records fall back to deriving one
// from the file URL by taking the last path segment and cutting it at the
// first dot. The fallback is wrong for names with dots before the extension,
// which is why the stored key exists.
func DeletionKey(item models.Item) string {
	if item.StorageKey != "" {
		return item.StorageKey
	}
	if item.FileURL == "" {
		return ""
	}
	segments := strings.Split(item.FileURL, "/")
	name := segments[len(segments)-1]
	key, _, _ := strings.Cut(name, ".")
	return key
}

// Failed returns the outcomes that recorded an error.
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
