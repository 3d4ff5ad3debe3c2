package fsmodel

import "github.com/vaultfm/vaultfm/internal/models"

// IsDescendantOrSelf reports whether candidateID equals ancestorID or sits
// somewhere below it. The walk follows parent links up from the candidate and
// stops at the root, at an unknown id, or when an id repeats.
func IsDescendantOrSelf(nodes map[string]models.Node, candidateID, ancestorID string) bool {
	candidateID = normalizeFolder(candidateID)
	ancestorID = normalizeFolder(ancestorID)

	seen := make(map[string]bool)
	for cur := candidateID; cur != "" && !seen[cur]; {
		if cur == ancestorID {
			return true
		}
		seen[cur] = true
		n, ok := nodes[cur]
		if !ok || n.IsRoot() {
			return false
		}
		cur = n.ParentID
	}
	return false
}

// CycleFree reports whether moving every id in moved under targetID keeps
// the tree acyclic. It returns the first offending id otherwise.
func CycleFree(nodes map[string]models.Node, moved []string, targetID string) (string, bool) {
	for _, id := range moved {
		if IsDescendantOrSelf(nodes, targetID, id) {
			return id, false
		}
	}
	return "", true
}
