package fsmodel

import (
	"sort"
	"strings"

	"github.com/vaultfm/vaultfm/internal/models"
)

// SortField selects the display sort key.
type SortField string

const (
	SortByName SortField = "name"
	SortBySize SortField = "size"
	SortByType SortField = "type"
	SortByDate SortField = "date"
)

// ParseSortField maps user input to a SortField, defaulting to name.
func ParseSortField(s string) SortField {
	switch SortField(strings.ToLower(strings.TrimSpace(s))) {
	case SortBySize:
		return SortBySize
	case SortByType:
		return SortByType
	case SortByDate, "modified":
		return SortByDate
	default:
		return SortByName
	}
}

// Sort returns a sorted copy of nodes. Directories always come before files,
// whatever the direction. Equal keys keep their input order.
func Sort(nodes []models.Node, field SortField, ascending bool) []models.Node {
	out := make([]models.Node, len(nodes))
	copy(out, nodes)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		c := compare(a, b, field)
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return out
}

func compare(a, b models.Node, field SortField) int {
	switch field {
	case SortBySize:
		return cmpInt(a.SizeOrZero(), b.SizeOrZero())
	case SortByType:
		return strings.Compare(a.MimeType, b.MimeType)
	case SortByDate:
		return cmpInt(a.LastModified, b.LastModified)
	default:
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
