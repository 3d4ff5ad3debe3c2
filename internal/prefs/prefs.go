// Package prefs persists per-user view preferences and favorites.
//
// Everything lives in one JSON file next to the config file, keyed by the
// user id from the bearer token, so several accounts on one machine keep
// separate favorites.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vaultfm/vaultfm/internal/config"
	"github.com/vaultfm/vaultfm/internal/constants"
	"github.com/vaultfm/vaultfm/internal/models"
)

const fileVersion = "1"

// View modes
const (
	ViewList  = "list"
	ViewIcons = "icons"
	ViewTree  = "tree"
)

// Favorite is a favorited node. The parent link is kept so favorites can be
// pruned after a delete without the deleted subtree being loaded.
type Favorite struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
	IsDir    bool   `json:"is_dir"`
}

// UserPrefs is the stored state of one user.
type UserPrefs struct {
	SortField string     `json:"sort_field"`
	Ascending bool       `json:"ascending"`
	ViewMode  string     `json:"view_mode"`
	Favorites []Favorite `json:"favorites"`
}

func defaultUserPrefs() *UserPrefs {
	return &UserPrefs{SortField: "name", Ascending: true, ViewMode: ViewList}
}

// Store is the preferences file.
type Store struct {
	mu sync.RWMutex

	Users   map[string]*UserPrefs `json:"users"`
	Version string                `json:"version"`

	filePath string
}

// NewStore creates an empty store backed by filePath.
func NewStore(filePath string) *Store {
	return &Store{
		Users:    make(map[string]*UserPrefs),
		Version:  fileVersion,
		filePath: filePath,
	}
}

// DefaultPath returns the preferences file location in the config directory.
func DefaultPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.PrefsFileName), nil
}

// Load reads the store from disk. A missing file yields an empty store.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.Users = make(map[string]*UserPrefs)
			return nil
		}
		return fmt.Errorf("failed to read prefs file: %w", err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse prefs file: %w", err)
	}
	if s.Users == nil {
		s.Users = make(map[string]*UserPrefs)
	}
	return nil
}

// Save writes the store to disk atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.filePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return fmt.Errorf("failed to create prefs directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal prefs: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write prefs file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename prefs file: %w", err)
	}
	return nil
}

// User returns a handle bound to one user id.
func (s *Store) User(userID string) *User {
	return &User{store: s, userID: userID}
}

// update applies fn to the user's prefs and saves.
func (s *Store) update(userID string, fn func(p *UserPrefs)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.Users[userID]
	if !ok {
		p = defaultUserPrefs()
		s.Users[userID] = p
	}
	fn(p)
	return s.saveLocked()
}

func (s *Store) get(userID string) UserPrefs {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.Users[userID]
	if !ok {
		return *defaultUserPrefs()
	}
	out := *p
	out.Favorites = append([]Favorite(nil), p.Favorites...)
	return out
}

// User is the preferences of a single user.
type User struct {
	store  *Store
	userID string
}

// ID returns the user id.
func (u *User) ID() string {
	return u.userID
}

// Prefs returns a copy of the user's preferences.
func (u *User) Prefs() UserPrefs {
	return u.store.get(u.userID)
}

// SetSort stores the sort field and direction.
func (u *User) SetSort(field string, ascending bool) error {
	return u.store.update(u.userID, func(p *UserPrefs) {
		p.SortField = field
		p.Ascending = ascending
	})
}

// SetViewMode stores the view mode.
func (u *User) SetViewMode(mode string) error {
	switch mode {
	case ViewList, ViewIcons, ViewTree:
	default:
		return fmt.Errorf("unknown view mode %q", mode)
	}
	return u.store.update(u.userID, func(p *UserPrefs) { p.ViewMode = mode })
}

// Favorites returns the user's favorites.
func (u *User) Favorites() []Favorite {
	return u.Prefs().Favorites
}

// IsFavorite reports whether id is a favorite.
func (u *User) IsFavorite(id string) bool {
	for _, f := range u.Favorites() {
		if f.ID == id {
			return true
		}
	}
	return false
}

// SetFavorite adds or removes n. Adding an existing favorite refreshes its
// name and parent.
func (u *User) SetFavorite(n models.Node, on bool) error {
	return u.store.update(u.userID, func(p *UserPrefs) {
		kept := p.Favorites[:0]
		for _, f := range p.Favorites {
			if f.ID != n.ID {
				kept = append(kept, f)
			}
		}
		if on {
			kept = append(kept, Favorite{ID: n.ID, Name: n.Name, ParentID: n.ParentID, IsDir: n.IsDir})
		}
		p.Favorites = kept
	})
}

// PruneFavorites drops favorites that were deleted, directly or through a
// deleted ancestor, and returns the pruned ids.
func (u *User) PruneFavorites(deleted []string) ([]string, error) {
	var pruned []string
	err := u.store.update(u.userID, func(p *UserPrefs) {
		p.Favorites, pruned = PruneClosure(p.Favorites, deleted)
	})
	return pruned, err
}

// PruneClosure removes every favorite whose id is in deleted or whose parent
// chain, followed through the favorites themselves, reaches a deleted id.
// Only the favorites list is consulted since deleted descendants may no
// longer be resolvable anywhere else.
func PruneClosure(favorites []Favorite, deleted []string) (kept []Favorite, pruned []string) {
	gone := make(map[string]bool, len(deleted))
	for _, id := range deleted {
		gone[id] = true
	}

	removed := make([]bool, len(favorites))
	for changed := true; changed; {
		changed = false
		for i, f := range favorites {
			if removed[i] {
				continue
			}
			if gone[f.ID] || gone[f.ParentID] {
				removed[i] = true
				gone[f.ID] = true
				pruned = append(pruned, f.ID)
				changed = true
			}
		}
	}

	kept = make([]Favorite, 0, len(favorites)-len(pruned))
	for i, f := range favorites {
		if !removed[i] {
			kept = append(kept, f)
		}
	}
	return kept, pruned
}
