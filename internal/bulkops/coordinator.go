// Package bulkops turns user intents (delete, move, copy, paste, rename)
// into backend calls and reconciles the file-system model afterwards.
//
// Bulk endpoints are used when the backend provides them. Otherwise items are
// processed one at a time in submission order, stopping at the first error.
// Destructive failures are returned to the caller; share refreshes and
// favorites sync are best-effort and only logged.
package bulkops

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/vaultfm/vaultfm/internal/constants"
	"github.com/vaultfm/vaultfm/internal/events"
	"github.com/vaultfm/vaultfm/internal/fsmodel"
	"github.com/vaultfm/vaultfm/internal/logging"
	"github.com/vaultfm/vaultfm/internal/metrics"
	"github.com/vaultfm/vaultfm/internal/models"
	"github.com/vaultfm/vaultfm/internal/selection"
)

// Options holds the optional collaborators of a Coordinator.
type Options struct {
	Confirmer Confirmer      // defaults to AlwaysConfirm
	Favorites Favorites      // local favorites list, may be nil
	Shares    ShareRefresher // share-list owner, may be nil
	EventBus  *events.EventBus
	Logger    *logging.Logger
}

// Coordinator executes file operations against the backend.
type Coordinator struct {
	backend   Backend
	loader    *fsmodel.Loader
	model     *fsmodel.Model
	selection *selection.State

	confirmer Confirmer
	favorites Favorites
	shares    ShareRefresher
	eventBus  *events.EventBus
	logger    *logging.Logger

	moving atomic.Int32
}

// New creates a coordinator.
func New(backend Backend, loader *fsmodel.Loader, sel *selection.State, opts Options) *Coordinator {
	if opts.Confirmer == nil {
		opts.Confirmer = AlwaysConfirm
	}
	return &Coordinator{
		backend:   backend,
		loader:    loader,
		model:     loader.Model(),
		selection: sel,
		confirmer: opts.Confirmer,
		favorites: opts.Favorites,
		shares:    opts.Shares,
		eventBus:  opts.EventBus,
		logger:    logging.OrNop(opts.Logger).Component("bulkops"),
	}
}

// IsMoving reports whether a move is in flight.
func (c *Coordinator) IsMoving() bool {
	return c.moving.Load() > 0
}

// Delete asks for confirmation, then deletes ids. Deleted ids are removed
// from the model and from the favorites, including favorites below a
// deleted folder, and the current folder is refreshed.
func (c *Coordinator) Delete(ctx context.Context, ids []string) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return ErrNothingSelected
	}
	for _, id := range ids {
		if n, ok := c.model.Get(id); ok {
			if n.IsRoot() {
				return fmt.Errorf("cannot delete the root folder")
			}
			if !n.CanOpen() {
				return fmt.Errorf("%s: %w", n.Name, ErrScanPending)
			}
		}
	}

	ok, err := c.confirmer.Confirm(ctx, c.deletePrompt(ids))
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return ErrCancelled
	}

	done, mode, err := c.runDelete(ctx, ids)
	metrics.RecordOperation("delete", mode, err)

	if len(done) > 0 {
		c.model.Remove(done...)
		c.selection.Deselect(done...)
		c.pruneFavorites(done)
		c.refresh(ctx, c.selection.CurrentFolder())
		c.refreshShares(ctx, "delete")
	}
	if err != nil {
		c.logger.Error().Err(err).Int("count", len(ids)).Msg("Delete failed")
		return fmt.Errorf("delete failed: %w", err)
	}

	c.logger.Info().Int("count", len(done)).Str("mode", mode).Msg("Deleted items")
	return nil
}

func (c *Coordinator) deletePrompt(ids []string) string {
	if len(ids) == 1 {
		name := ids[0]
		if n, ok := c.model.Get(ids[0]); ok {
			name = n.Name
		}
		return fmt.Sprintf("Delete %q?", name)
	}
	return fmt.Sprintf("Delete %d items?", len(ids))
}

func (c *Coordinator) runDelete(ctx context.Context, ids []string) ([]string, string, error) {
	if bulk, ok := c.backend.(BulkDeleter); ok {
		if _, err := bulk.BulkDelete(ctx, ids); err != nil {
			return nil, metrics.ModeBulk, err
		}
		return ids, metrics.ModeBulk, nil
	}
	if len(ids) == 1 {
		if err := c.backend.Delete(ctx, ids[0]); err != nil {
			return nil, metrics.ModeSingle, err
		}
		return ids, metrics.ModeSingle, nil
	}
	done, err := sequential(ctx, "delete", ids, c.backend.Delete)
	return done, metrics.ModeSequential, err
}

func (c *Coordinator) pruneFavorites(deleted []string) {
	if c.favorites == nil {
		return
	}
	pruned, err := c.favorites.PruneFavorites(deleted)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to sync favorites after delete")
		return
	}
	if len(pruned) > 0 {
		c.logger.Debug().Strs("ids", pruned).Msg("Pruned favorites")
	}
}

// Move re-parents ids under targetID. The move is rejected before any call
// when targetID is one of ids or lies below one of them.
func (c *Coordinator) Move(ctx context.Context, ids []string, targetID string) error {
	ids = dedupe(ids)
	targetID = normalizeID(targetID)
	if len(ids) == 0 {
		return ErrNothingSelected
	}
	if err := c.validateTarget(ids, targetID); err != nil {
		return err
	}
	for _, id := range ids {
		if n, ok := c.model.Get(id); ok && !n.CanDrag() {
			return fmt.Errorf("%s: %w", n.Name, ErrNotMovable)
		}
	}

	// Parents are captured before the move so their listings can be refreshed
	sources := c.parentsOf(ids)

	c.setMoving(true)
	defer c.setMoving(false)

	done, mode, err := c.runMove(ctx, ids, targetID)
	metrics.RecordOperation("move", mode, err)

	if len(done) > 0 {
		c.selection.Deselect(done...)
		c.refresh(ctx, append([]string{c.selection.CurrentFolder(), targetID}, sources...)...)
		c.refreshShares(ctx, "move")
	}
	if err != nil {
		c.logger.Error().Err(err).Str("target", targetID).Int("count", len(ids)).Msg("Move failed")
		return fmt.Errorf("move failed: %w", err)
	}

	c.logger.Info().Int("count", len(done)).Str("target", targetID).Str("mode", mode).Msg("Moved items")
	return nil
}

func (c *Coordinator) runMove(ctx context.Context, ids []string, targetID string) ([]string, string, error) {
	if bulk, ok := c.backend.(BulkMover); ok {
		if _, err := bulk.BulkMove(ctx, ids, targetID); err != nil {
			return nil, metrics.ModeBulk, err
		}
		return ids, metrics.ModeBulk, nil
	}
	if len(ids) == 1 {
		if err := c.backend.Move(ctx, ids[0], targetID); err != nil {
			return nil, metrics.ModeSingle, err
		}
		return ids, metrics.ModeSingle, nil
	}
	done, err := sequential(ctx, "move", ids, func(ctx context.Context, id string) error {
		return c.backend.Move(ctx, id, targetID)
	})
	return done, metrics.ModeSequential, err
}

func (c *Coordinator) setMoving(on bool) {
	if on {
		if c.moving.Add(1) == 1 {
			c.eventBus.PublishMoving(true)
		}
		return
	}
	if c.moving.Add(-1) == 0 {
		c.eventBus.PublishMoving(false)
	}
}

// Copy copies ids under targetID. The clipboard is left alone so the same
// copy can be pasted again.
func (c *Coordinator) Copy(ctx context.Context, ids []string, targetID string) error {
	ids = dedupe(ids)
	targetID = normalizeID(targetID)
	if len(ids) == 0 {
		return ErrNothingSelected
	}
	if err := c.validateTarget(ids, targetID); err != nil {
		return err
	}

	var (
		mode string
		err  error
	)
	switch b := c.backend.(type) {
	case BulkCopier:
		mode = metrics.ModeBulk
		_, err = b.BulkCopy(ctx, ids, targetID)
	case Copier:
		mode = metrics.ModeSequential
		_, err = sequential(ctx, "copy", ids, func(ctx context.Context, id string) error {
			return b.Copy(ctx, id, targetID)
		})
	default:
		return ErrCopyUnsupported
	}
	metrics.RecordOperation("copy", mode, err)

	// Sequential copies may have partly succeeded
	c.refresh(ctx, c.selection.CurrentFolder(), targetID)
	if err != nil {
		c.logger.Error().Err(err).Str("target", targetID).Msg("Copy failed")
		return fmt.Errorf("copy failed: %w", err)
	}
	c.logger.Info().Int("count", len(ids)).Str("target", targetID).Msg("Copied items")
	return nil
}

// Paste pastes the clipboard into the current folder. A cut clipboard is
// moved and then cleared, a copy clipboard is copied and kept.
func (c *Coordinator) Paste(ctx context.Context) error {
	if !c.selection.CanPaste() {
		return ErrPasteNotAllowed
	}
	cb := c.selection.Clipboard()
	target := c.selection.CurrentFolder()

	if cb.Mode == models.ClipboardCut {
		if err := c.Move(ctx, cb.IDs, target); err != nil {
			return err
		}
		c.selection.ClearClipboard()
		return nil
	}
	return c.Copy(ctx, cb.IDs, target)
}

// Rename renames id. The name is trimmed; an unchanged name is a no-op and
// returns false.
func (c *Coordinator) Rename(ctx context.Context, id, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return false, err
	}

	n, known := c.model.Get(id)
	if known {
		if n.IsRoot() {
			return false, fmt.Errorf("cannot rename the root folder")
		}
		if n.Name == name {
			return false, nil
		}
		if !n.CanOpen() {
			return false, fmt.Errorf("%s: %w", n.Name, ErrScanPending)
		}
	}

	updated, err := c.backend.Rename(ctx, id, name)
	metrics.RecordOperation("rename", metrics.ModeSingle, err)
	if err != nil {
		c.logger.Error().Err(err).Str("id", id).Msg("Rename failed")
		return false, fmt.Errorf("rename failed: %w", err)
	}

	parent := updated.ParentID
	if known {
		parent = n.ParentID
	}
	c.refresh(ctx, parent)
	c.refreshShares(ctx, "rename")
	return true, nil
}

// CreateFolder creates a folder named name in the current folder and
// refreshes it.
func (c *Coordinator) CreateFolder(ctx context.Context, name string) (models.Node, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return models.Node{}, err
	}
	parent := c.selection.CurrentFolder()

	n, err := c.backend.CreateFolder(ctx, name, parent)
	metrics.RecordOperation("create_folder", metrics.ModeSingle, err)
	if err != nil {
		c.logger.Error().Err(err).Str("name", name).Msg("Create folder failed")
		return models.Node{}, fmt.Errorf("create folder failed: %w", err)
	}
	c.refresh(ctx, parent)
	return n, nil
}

// ToggleFavorite flips the favorite flag of id on the backend and mirrors
// the result into the local favorites list.
func (c *Coordinator) ToggleFavorite(ctx context.Context, id string) (models.Node, error) {
	toggler, ok := c.backend.(FavoriteToggler)
	if !ok {
		return models.Node{}, fmt.Errorf("backend does not support favorites")
	}

	n, err := toggler.ToggleFavorite(ctx, id)
	metrics.RecordOperation("favorite", metrics.ModeSingle, err)
	if err != nil {
		return models.Node{}, fmt.Errorf("toggle favorite failed: %w", err)
	}

	if c.favorites != nil {
		if err := c.favorites.SetFavorite(n, n.IsFavorite); err != nil {
			c.logger.Warn().Err(err).Str("id", id).Msg("Failed to sync favorites")
		}
	}
	if c.model.IsFetched(n.ParentID) {
		c.refreshSilent(ctx, n.ParentID)
	}
	return n, nil
}

func (c *Coordinator) validateTarget(ids []string, targetID string) error {
	if target, ok := c.model.Get(targetID); ok && !target.IsDir {
		return fmt.Errorf("%s: %w", target.Name, ErrInvalidTarget)
	}
	if bad, ok := fsmodel.CycleFree(c.model.Lookup(), ids, targetID); !ok {
		return fmt.Errorf("%s: %w", bad, ErrCycle)
	}
	return nil
}

func (c *Coordinator) parentsOf(ids []string) []string {
	var parents []string
	for _, id := range ids {
		if n, ok := c.model.Get(id); ok && c.model.IsFetched(n.ParentID) {
			parents = append(parents, n.ParentID)
		}
	}
	return parents
}

// refresh reloads each distinct folder. Failures are logged; the mutation
// itself already succeeded and the next refresh will reconcile.
func (c *Coordinator) refresh(ctx context.Context, folderIDs ...string) {
	seen := make(map[string]bool)
	for _, id := range folderIDs {
		id = normalizeID(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := c.loader.Refresh(ctx, id, false); err != nil {
			c.logger.Warn().Err(err).Str("folder_id", id).Msg("Refresh after operation failed")
		}
	}
}

func (c *Coordinator) refreshSilent(ctx context.Context, folderID string) {
	if _, err := c.loader.Refresh(ctx, folderID, true); err != nil {
		c.logger.Debug().Err(err).Str("folder_id", folderID).Msg("Silent refresh failed")
	}
}

func (c *Coordinator) refreshShares(ctx context.Context, reason string) {
	c.eventBus.PublishSharesStale(reason)
	if c.shares == nil {
		return
	}
	if err := c.shares.RefreshShares(ctx); err != nil {
		c.logger.Warn().Err(err).Str("reason", reason).Msg("Share list refresh failed")
	}
}

// sequential runs fn for each id in order and stops at the first error.
func sequential(ctx context.Context, op string, ids []string, fn func(ctx context.Context, id string) error) ([]string, error) {
	done := make([]string, 0, len(ids))
	for _, id := range ids {
		err := ctx.Err()
		if err == nil {
			err = fn(ctx, id)
		}
		if err != nil {
			return done, &PartialError{Op: op, Completed: done, FailedID: id, Err: err}
		}
		done = append(done, id)
	}
	return done, nil
}

func validateName(name string) error {
	if name == "" || utf8.RuneCountInString(name) > constants.MaxFolderNameLength {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("name must not contain path separators: %w", ErrInvalidName)
	}
	return nil
}

func normalizeID(id string) string {
	if id == "" {
		return models.RootID
	}
	return id
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
