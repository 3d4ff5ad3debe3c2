package bulkops

import (
	"context"

	"github.com/vaultfm/vaultfm/internal/models"
)

// Backend is the set of single-item calls every backend must provide.
// Bulk variants are optional and detected with a type assertion.
type Backend interface {
	Deleter
	Mover
	Renamer
	FolderCreator
}

// Deleter deletes one item.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// BulkDeleter deletes many items in one call.
type BulkDeleter interface {
	BulkDelete(ctx context.Context, ids []string) (int, error)
}

// Mover re-parents one item.
type Mover interface {
	Move(ctx context.Context, id, parentID string) error
}

// BulkMover re-parents many items in one call.
type BulkMover interface {
	BulkMove(ctx context.Context, ids []string, parentID string) (int, error)
}

// Copier copies one item.
type Copier interface {
	Copy(ctx context.Context, id, parentID string) error
}

// BulkCopier copies many items in one call.
type BulkCopier interface {
	BulkCopy(ctx context.Context, ids []string, parentID string) (int, error)
}

// Renamer renames one item.
type Renamer interface {
	Rename(ctx context.Context, id, name string) (models.Node, error)
}

// FolderCreator creates a folder.
type FolderCreator interface {
	CreateFolder(ctx context.Context, name, parentID string) (models.Node, error)
}

// FavoriteToggler flips the backend favorite flag.
type FavoriteToggler interface {
	ToggleFavorite(ctx context.Context, id string) (models.Node, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm answers yes without asking.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// Favorites is the local favorites list.
type Favorites interface {
	SetFavorite(n models.Node, on bool) error
	PruneFavorites(deleted []string) ([]string, error)
}

// ShareRefresher refetches the share-link list after a share-relevant change.
type ShareRefresher interface {
	RefreshShares(ctx context.Context) error
}
