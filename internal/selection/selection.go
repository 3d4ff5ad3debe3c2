// Package selection tracks the selected ids of the current folder and the
// cut/copy clipboard.
package selection

import (
	"sync"

	"github.com/vaultfm/vaultfm/internal/events"
	"github.com/vaultfm/vaultfm/internal/models"
)

// Modifiers are the keys held during a click.
type Modifiers struct {
	Ctrl  bool // toggle, Cmd on macOS
	Shift bool // range from the anchor
}

// State is the selection and clipboard of one workspace view.
// All methods are safe for concurrent use.
type State struct {
	mu        sync.RWMutex
	folderID  string
	order     []string // selection in the order ids were added
	selected  map[string]bool
	anchor    string // last plainly or ctrl-clicked id
	clipboard models.Clipboard

	eventBus *events.EventBus
}

// New creates an empty selection scoped to the root folder. eventBus may be nil.
func New(eventBus *events.EventBus) *State {
	return &State{
		folderID: models.RootID,
		selected: make(map[string]bool),
		eventBus: eventBus,
	}
}

// CurrentFolder returns the folder the selection is scoped to.
func (s *State) CurrentFolder() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folderID
}

// SetFolder navigates to folderID. The selection is cleared when the folder
// actually changes; the clipboard is kept.
func (s *State) SetFolder(folderID string) {
	if folderID == "" {
		folderID = models.RootID
	}

	s.mu.Lock()
	old := s.folderID
	if old == folderID {
		s.mu.Unlock()
		return
	}
	s.folderID = folderID
	hadSelection := len(s.order) > 0
	s.clearLocked()
	s.anchor = ""
	s.mu.Unlock()

	s.eventBus.PublishFolderChanged(old, folderID)
	if hadSelection {
		s.eventBus.PublishSelection(nil)
	}
}

// Selected returns the selected ids in selection order.
func (s *State) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// IsSelected reports whether id is selected.
func (s *State) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected[id]
}

// Select replaces the selection with ids.
func (s *State) Select(ids []string) {
	s.mu.Lock()
	s.clearLocked()
	for _, id := range ids {
		s.addLocked(id)
	}
	s.mu.Unlock()
	s.publishSelection()
}

// SelectAll selects every visible id.
func (s *State) SelectAll(visible []string) {
	s.Select(visible)
}

// Toggle flips one id.
func (s *State) Toggle(id string) {
	s.mu.Lock()
	if s.selected[id] {
		s.removeLocked(id)
	} else {
		s.addLocked(id)
	}
	s.mu.Unlock()
	s.publishSelection()
}

// Deselect drops ids from the selection. Unknown ids are ignored.
func (s *State) Deselect(ids ...string) {
	s.mu.Lock()
	changed := false
	for _, id := range ids {
		if s.selected[id] {
			s.removeLocked(id)
			changed = true
		}
	}
	s.mu.Unlock()
	if changed {
		s.publishSelection()
	}
}

// Clear empties the selection.
func (s *State) Clear() {
	s.Select(nil)
}

// SelectRange selects every id of visible between anchor and clicked,
// inclusive, whichever comes first. With additive the range is added to the
// current selection, otherwise it replaces it. When either end is not
// visible only clicked is selected.
func (s *State) SelectRange(visible []string, anchor, clicked string, additive bool) {
	from, to := indexOf(visible, anchor), indexOf(visible, clicked)

	s.mu.Lock()
	if !additive {
		s.clearLocked()
	}
	if from < 0 || to < 0 {
		s.addLocked(clicked)
	} else {
		if from > to {
			from, to = to, from
		}
		for _, id := range visible[from : to+1] {
			s.addLocked(id)
		}
	}
	s.mu.Unlock()
	s.publishSelection()
}

// Click applies a click on id in the visible ordered list. A plain click
// selects only id, ctrl toggles it, shift selects the range from the last
// clicked id (ctrl+shift adds the range). Shift does not move the anchor.
func (s *State) Click(visible []string, id string, mods Modifiers) {
	s.mu.RLock()
	anchor := s.anchor
	s.mu.RUnlock()

	switch {
	case mods.Shift && anchor != "":
		s.SelectRange(visible, anchor, id, mods.Ctrl)
		return
	case mods.Ctrl:
		s.Toggle(id)
	default:
		s.Select([]string{id})
	}

	s.mu.Lock()
	s.anchor = id
	s.mu.Unlock()
}

// ActionTargets resolves the ids a context-menu action on targetID applies
// to: the whole selection when targetID is part of it, otherwise targetID
// alone. The selection itself is not changed.
func (s *State) ActionTargets(targetID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected[targetID] {
		return append([]string(nil), s.order...)
	}
	return []string{targetID}
}

// Cut puts ids on the clipboard in cut mode. Empty ids fall back to the
// selection. It returns false when there is nothing to cut.
func (s *State) Cut(ids []string) bool {
	return s.capture(ids, models.ClipboardCut)
}

// Copy puts ids on the clipboard in copy mode. Empty ids fall back to the
// selection. It returns false when there is nothing to copy.
func (s *State) Copy(ids []string) bool {
	return s.capture(ids, models.ClipboardCopy)
}

func (s *State) capture(ids []string, mode models.ClipboardMode) bool {
	s.mu.Lock()
	if len(ids) == 0 {
		ids = s.order
	}
	if len(ids) == 0 {
		s.mu.Unlock()
		return false
	}
	s.clipboard = models.Clipboard{
		IDs:            append([]string(nil), ids...),
		Mode:           mode,
		SourceFolderID: s.folderID,
	}
	cb := s.clipboard.Clone()
	s.mu.Unlock()

	s.eventBus.PublishClipboard(cb)
	return true
}

// Clipboard returns a copy of the clipboard.
func (s *State) Clipboard() models.Clipboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clipboard.Clone()
}

// ClearClipboard empties the clipboard.
func (s *State) ClearClipboard() {
	s.mu.Lock()
	s.clipboard = models.Clipboard{}
	s.mu.Unlock()
	s.eventBus.PublishClipboard(models.Clipboard{})
}

// CanPaste reports whether the clipboard can be pasted into the current folder.
func (s *State) CanPaste() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.clipboard.IsEmpty() && s.clipboard.SourceFolderID != s.folderID
}

func (s *State) addLocked(id string) {
	if id == "" || s.selected[id] {
		return
	}
	s.selected[id] = true
	s.order = append(s.order, id)
}

func (s *State) removeLocked(id string) {
	delete(s.selected, id)
	for i, cur := range s.order {
		if cur == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *State) clearLocked() {
	s.order = nil
	s.selected = make(map[string]bool)
}

func (s *State) publishSelection() {
	s.eventBus.PublishSelection(s.Selected())
}

func indexOf(ids []string, id string) int {
	for i, cur := range ids {
		if cur == id {
			return i
		}
	}
	return -1
}
