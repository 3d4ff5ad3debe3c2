package models

import (
	"encoding/json"
	"time"

	"github.com/vaultfm/vaultfm/internal/constants"
)

// RootID is the id of the synthetic workspace root.
const RootID = constants.RootID

// ScanStatus is the antivirus scan state the backend reports for a file.
type ScanStatus string

const (
	ScanPending      ScanStatus = "pending"
	ScanScanning     ScanStatus = "scanning"
	ScanClean        ScanStatus = "clean"
	ScanInfected     ScanStatus = "infected"
	ScanUnchecked    ScanStatus = "unchecked"
	ScanNotSupported ScanStatus = "not_supported"
)

// IsPendingScan reports whether the backend has not finished scanning yet.
func (s ScanStatus) IsPendingScan() bool {
	return s == ScanPending || s == ScanScanning
}

// IsInfected reports whether the scanner flagged the file.
func (s ScanStatus) IsInfected() bool {
	return s == ScanInfected
}

// Node is a file or folder held by the file-system model.
// Links between nodes are by id only (ParentID), never by pointer.
type Node struct {
	ID       string
	Name     string
	IsDir    bool
	ParentID string // RootID for top-level entries, "" only for the root itself

	Size         *int64
	MimeType     string
	LastModified int64 // unix seconds
	ScanStatus   ScanStatus
	ScanResult   string
	Hash         string

	// ExtraMetadata is kept opaque; the core never inspects it.
	ExtraMetadata json.RawMessage

	Tags         []string
	Category     string
	IsFavorite   bool
	IsShared     bool
	HasThumbnail bool
	IsEncrypted  bool
	ExpiresAt    *time.Time
}

// NewRoot returns the root folder node.
func NewRoot() Node {
	return Node{ID: RootID, Name: "/", IsDir: true}
}

// IsRoot reports whether n is the workspace root.
func (n Node) IsRoot() bool {
	return n.ID == RootID
}

// CanDrag reports whether n may be the source of a drag or move.
// The root, files still being scanned and infected files cannot be dragged.
func (n Node) CanDrag() bool {
	if n.IsRoot() {
		return false
	}
	return !n.ScanStatus.IsPendingScan() && !n.ScanStatus.IsInfected()
}

// CanOpen guards the primary action path (preview, rename, delete).
func (n Node) CanOpen() bool {
	return !n.ScanStatus.IsPendingScan()
}

// CanDownload reports whether the file may be fetched. Download and metadata
// stay available while a scan is in progress.
func (n Node) CanDownload() bool {
	return !n.IsDir && !n.ScanStatus.IsInfected()
}

// SizeOrZero returns the size, treating an unknown size as zero.
func (n Node) SizeOrZero() int64 {
	if n.Size == nil {
		return 0
	}
	return *n.Size
}

// FolderTreeEntry is a lightweight sidebar entry. It is never merged into the
// authoritative model.
type FolderTreeEntry struct {
	ID       string
	Name     string
	ParentID string
}
