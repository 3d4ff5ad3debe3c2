package fsmodel

import (
	"context"
	"fmt"

	"github.com/vaultfm/vaultfm/internal/constants"
	"github.com/vaultfm/vaultfm/internal/logging"
	"github.com/vaultfm/vaultfm/internal/metrics"
	"github.com/vaultfm/vaultfm/internal/models"
)

// Lister fetches one page of a folder listing.
type Lister interface {
	ListFiles(ctx context.Context, parentID string, limit, offset int) ([]models.Node, error)
}

// PathResolver returns the root-first ancestor chain of a folder, the folder
// itself last.
type PathResolver interface {
	FolderPath(ctx context.Context, id string) ([]models.Node, error)
}

// Loader fetches folders from the backend and merges them into a Model.
type Loader struct {
	model    *Model
	lister   Lister
	paths    PathResolver
	pageSize int
	logger   *logging.Logger
}

// NewLoader creates a loader. paths may be nil when Reveal is not needed.
func NewLoader(model *Model, lister Lister, paths PathResolver, logger *logging.Logger) *Loader {
	return &Loader{
		model:    model,
		lister:   lister,
		paths:    paths,
		pageSize: constants.DefaultPageSize,
		logger:   logging.OrNop(logger).Component("fsmodel"),
	}
}

// SetPageSize overrides the listing page size.
func (l *Loader) SetPageSize(n int) {
	if n > 0 {
		l.pageSize = n
	}
}

// Model returns the model this loader merges into.
func (l *Loader) Model() *Model {
	return l.model
}

// Refresh fetches every page of folderID and merges the result as one
// snapshot. A silent refresh is a background refetch and logs at debug only.
// On error the model is left untouched.
func (l *Loader) Refresh(ctx context.Context, folderID string, silent bool) ([]models.Node, error) {
	folderID = normalizeFolder(folderID)

	nodes, err := l.fetchAll(ctx, folderID)
	metrics.RecordFolderRefresh(silent, err)
	if err != nil {
		ev := l.logger.Warn()
		if silent {
			ev = l.logger.Debug()
		}
		ev.Err(err).Str("folder_id", folderID).Bool("silent", silent).Msg("Folder refresh failed")
		return nil, fmt.Errorf("failed to refresh folder %s: %w", folderID, err)
	}

	l.model.MergeFolder(folderID, nodes)

	ev := l.logger.Debug()
	if !silent {
		ev = l.logger.Info()
	}
	ev.Str("folder_id", folderID).Int("count", len(nodes)).Msg("Folder refreshed")
	return nodes, nil
}

func (l *Loader) fetchAll(ctx context.Context, folderID string) ([]models.Node, error) {
	var all []models.Node
	for offset := 0; ; offset += l.pageSize {
		page, err := l.lister.ListFiles(ctx, folderID, l.pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < l.pageSize {
			return all, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Reveal makes a deep folder displayable: it merges the folder's ancestor
// chain from the path lookup, then refreshes the folder itself.
func (l *Loader) Reveal(ctx context.Context, folderID string) ([]models.Node, error) {
	folderID = normalizeFolder(folderID)

	if folderID != models.RootID && l.paths != nil {
		chain, err := l.paths.FolderPath(ctx, folderID)
		if err != nil {
			l.logger.Warn().Err(err).Str("folder_id", folderID).Msg("Folder path lookup failed")
			return nil, fmt.Errorf("failed to resolve path of %s: %w", folderID, err)
		}
		l.model.MergeAncestors(chain)
	}
	return l.Refresh(ctx, folderID, false)
}
