package workspace

import (
	"context"
	"sync"

	"github.com/vaultfm/vaultfm/internal/logging"
	"github.com/vaultfm/vaultfm/internal/models"
)

// ShareLister lists share links, optionally limited to one file.
type ShareLister interface {
	ListShares(ctx context.Context, fileID string) ([]models.Share, error)
}

// ShareList caches the user's share links. Mutations that can affect a
// share (delete, move, rename) call RefreshShares.
type ShareList struct {
	lister ShareLister
	logger *logging.Logger

	mu     sync.RWMutex
	shares []models.Share
	loaded bool
}

// NewShareList creates an empty list.
func NewShareList(lister ShareLister, logger *logging.Logger) *ShareList {
	return &ShareList{lister: lister, logger: logging.OrNop(logger).Component("shares")}
}

// RefreshShares refetches every share of the user.
func (s *ShareList) RefreshShares(ctx context.Context) error {
	shares, err := s.lister.ListShares(ctx, "")
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.shares = shares
	s.loaded = true
	s.mu.Unlock()
	s.logger.Debug().Int("count", len(shares)).Msg("Share list refreshed")
	return nil
}

// Shares returns the cached list and whether it was ever loaded.
func (s *ShareList) Shares() ([]models.Share, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Share(nil), s.shares...), s.loaded
}

// ForFile returns the cached shares of one file.
func (s *ShareList) ForFile(fileID string) []models.Share {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Share
	for _, sh := range s.shares {
		if sh.UserFileID == fileID {
			out = append(out, sh)
		}
	}
	return out
}
