// Package fsmodel holds the client-side picture of the remote file tree.
//
// Nodes live in a flat arena keyed by id and point at their parent by id
// only. The model is only ever changed through whole-folder merges
// (MergeFolder), ancestor merges (MergeAncestors) and delete
// acknowledgments (Remove), so concurrent refetches of the same folder are
// idempotent and the last one applied wins.
package fsmodel

import (
	"sort"
	"sync"

	"github.com/vaultfm/vaultfm/internal/events"
	"github.com/vaultfm/vaultfm/internal/metrics"
	"github.com/vaultfm/vaultfm/internal/models"
)

// entry is a node plus the order in which it was merged. The sequence keeps
// the backend's listing order for stable tie-breaks.
type entry struct {
	node models.Node
	seq  uint64
}

// Model is the normalized node collection.
type Model struct {
	mu      sync.RWMutex
	nodes   map[string]entry
	fetched map[string]bool
	nextSeq uint64

	// index is rebuilt lazily after a mutation
	index map[string][]models.Node

	eventBus *events.EventBus
}

// New creates a model holding only the root folder. eventBus may be nil.
func New(eventBus *events.EventBus) *Model {
	m := &Model{
		nodes:    make(map[string]entry),
		fetched:  make(map[string]bool),
		eventBus: eventBus,
	}
	m.nodes[models.RootID] = entry{node: models.NewRoot()}
	return m
}

func normalizeFolder(id string) string {
	if id == "" {
		return models.RootID
	}
	return id
}

// MergeFolder replaces the children of parentID with nodes. Every held node
// whose parent is parentID is dropped first, nodes of other folders are left
// alone. parentID is recorded as fetched.
func (m *Model) MergeFolder(parentID string, nodes []models.Node) {
	parentID = normalizeFolder(parentID)

	m.mu.Lock()
	incoming := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		incoming[n.ID] = true
	}
	var gone []string
	for id, e := range m.nodes {
		if id == models.RootID || e.node.ParentID != parentID {
			continue
		}
		delete(m.nodes, id)
		if !incoming[id] {
			delete(m.fetched, id)
			gone = append(gone, id)
		}
	}
	m.dropDescendantsLocked(gone)
	for _, n := range nodes {
		if n.ID == "" || n.ID == models.RootID {
			continue
		}
		n.ParentID = parentID
		m.put(n)
	}
	m.fetched[parentID] = true
	m.index = nil
	total := len(m.nodes)
	m.mu.Unlock()

	metrics.SetModelNodes(total)
	m.eventBus.PublishModelChanged(parentID, len(nodes))
}

// MergeAncestors merges a root-first ancestor chain from a path lookup.
// Missing ids are inserted; held ids only get their name and parent
// refreshed, since path entries carry no listing detail.
func (m *Model) MergeAncestors(chain []models.Node) {
	if len(chain) == 0 {
		return
	}

	m.mu.Lock()
	for _, n := range chain {
		if n.ID == "" || n.ID == models.RootID {
			continue
		}
		if n.ParentID == "" {
			n.ParentID = models.RootID
		}
		if e, ok := m.nodes[n.ID]; ok {
			e.node.Name = n.Name
			e.node.ParentID = n.ParentID
			e.node.IsDir = e.node.IsDir || n.IsDir
			m.nodes[n.ID] = e
			continue
		}
		m.put(n)
	}
	m.index = nil
	total := len(m.nodes)
	m.mu.Unlock()

	metrics.SetModelNodes(total)
	m.eventBus.PublishModelChanged("", len(chain))
}

// put inserts or replaces n. Caller must hold the write lock.
func (m *Model) put(n models.Node) {
	m.nextSeq++
	m.nodes[n.ID] = entry{node: n, seq: m.nextSeq}
}

// dropDescendantsLocked removes every node below the given folders together
// with their fetched marks, and returns the removed ids. The folders
// themselves must already be gone. Caller must hold the write lock.
func (m *Model) dropDescendantsLocked(folders []string) []string {
	if len(folders) == 0 {
		return nil
	}
	byParent := make(map[string][]string)
	for id, e := range m.nodes {
		if id == models.RootID {
			continue
		}
		byParent[e.node.ParentID] = append(byParent[e.node.ParentID], id)
	}

	var dropped []string
	queue := append([]string(nil), folders...)
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, id := range byParent[parent] {
			if _, ok := m.nodes[id]; !ok {
				continue
			}
			delete(m.nodes, id)
			delete(m.fetched, id)
			dropped = append(dropped, id)
			queue = append(queue, id)
		}
	}
	return dropped
}

// Remove drops ids after the backend acknowledged their deletion, together
// with everything held below them. The root is never removed. Unknown ids
// are ignored.
func (m *Model) Remove(ids ...string) {
	removed := make([]string, 0, len(ids))

	m.mu.Lock()
	for _, id := range ids {
		if id == models.RootID {
			continue
		}
		if _, ok := m.nodes[id]; ok {
			delete(m.nodes, id)
			delete(m.fetched, id)
			removed = append(removed, id)
		}
	}
	removed = append(removed, m.dropDescendantsLocked(removed)...)
	if len(removed) > 0 {
		m.index = nil
	}
	total := len(m.nodes)
	m.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	metrics.SetModelNodes(total)
	m.eventBus.PublishNodesRemoved(removed)
}

// Get returns the node with the given id.
func (m *Model) Get(id string) (models.Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes[normalizeFolder(id)]
	return e.node, ok
}

// Len returns the number of held nodes, root included.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// Nodes returns a snapshot of every node in merge order.
func (m *Model) Nodes() []models.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Model) snapshotLocked() []models.Node {
	entries := make([]entry, 0, len(m.nodes))
	for _, e := range m.nodes {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]models.Node, len(entries))
	for i, e := range entries {
		out[i] = e.node
	}
	return out
}

// Lookup returns an id-keyed snapshot for the pure helpers in this package.
func (m *Model) Lookup() map[string]models.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.Node, len(m.nodes))
	for id, e := range m.nodes {
		out[id] = e.node
	}
	return out
}

// ChildrenIndex groups nodes by parent id. The map is shared between callers
// until the next mutation and must not be modified.
func (m *Model) ChildrenIndex() map[string][]models.Node {
	m.mu.RLock()
	idx := m.index
	m.mu.RUnlock()
	if idx != nil {
		return idx
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil {
		m.index = make(map[string][]models.Node)
		for _, n := range m.snapshotLocked() {
			if n.IsRoot() {
				continue
			}
			m.index[n.ParentID] = append(m.index[n.ParentID], n)
		}
	}
	return m.index
}

// Children returns a copy of the children of parentID in merge order.
func (m *Model) Children(parentID string) []models.Node {
	children := m.ChildrenIndex()[normalizeFolder(parentID)]
	out := make([]models.Node, len(children))
	copy(out, children)
	return out
}

// FetchedFolders returns the ids of folders that have been merged at least
// once and are still held.
func (m *Model) FetchedFolders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.fetched))
	for id := range m.fetched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsFetched reports whether folderID has been merged.
func (m *Model) IsFetched(folderID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetched[normalizeFolder(folderID)]
}

// Ancestors returns the breadcrumb for id: root first, id last. The walk stops
// at the first unknown parent or at a repeated id.
func (m *Model) Ancestors(id string) []models.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chain []models.Node
	seen := make(map[string]bool)
	for cur := normalizeFolder(id); cur != "" && !seen[cur]; {
		seen[cur] = true
		e, ok := m.nodes[cur]
		if !ok {
			break
		}
		chain = append(chain, e.node)
		if e.node.IsRoot() {
			break
		}
		cur = e.node.ParentID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
