package models

import (
	"encoding/json"
	"time"
)

// FileRecord is the backend's file metadata response.
type FileRecord struct {
	ID            string          `json:"id"`
	Filename      string          `json:"filename"`
	Size          *int64          `json:"size"`
	MimeType      *string         `json:"mime_type"`
	IsFolder      bool            `json:"is_folder"`
	ParentID      *string         `json:"parent_id"` // null for top-level entries
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	Tags          []string        `json:"tags"`
	Category      *string         `json:"category"`
	ExtraMetadata json.RawMessage `json:"extra_metadata,omitempty"`
	ScanStatus    *string         `json:"scan_status"`
	ScanResult    *string         `json:"scan_result"`
	Hash          *string         `json:"hash"`
	IsFavorite    bool            `json:"is_favorite"`
	HasThumbnail  bool            `json:"has_thumbnail"`
	IsEncrypted   bool            `json:"is_encrypted"`
	IsShared      bool            `json:"is_shared"`
}

// ToNode maps a backend record into a model node.
func (r FileRecord) ToNode() Node {
	n := Node{
		ID:           r.ID,
		Name:         r.Filename,
		IsDir:        r.IsFolder,
		ParentID:     NormalizeParentID(r.ParentID),
		Size:         r.Size,
		MimeType:     deref(r.MimeType),
		Category:     deref(r.Category),
		ScanStatus:   ScanStatus(deref(r.ScanStatus)),
		ScanResult:   deref(r.ScanResult),
		Hash:         deref(r.Hash),
		Tags:         r.Tags,
		IsFavorite:   r.IsFavorite,
		IsShared:     r.IsShared,
		HasThumbnail: r.HasThumbnail,
		IsEncrypted:  r.IsEncrypted,
		ExpiresAt:    r.ExpiresAt,
	}
	if !r.CreatedAt.IsZero() {
		n.LastModified = r.CreatedAt.Unix()
	}
	if len(r.ExtraMetadata) > 0 && string(r.ExtraMetadata) != "null" {
		n.ExtraMetadata = r.ExtraMetadata
	}
	return n
}

// RecordsToNodes maps a page of records.
func RecordsToNodes(records []FileRecord) []Node {
	nodes := make([]Node, 0, len(records))
	for _, r := range records {
		nodes = append(nodes, r.ToNode())
	}
	return nodes
}

// NormalizeParentID maps the backend's representations of "top level"
// (null, empty, "root", "0") onto RootID.
func NormalizeParentID(p *string) string {
	if p == nil {
		return RootID
	}
	switch *p {
	case "", "root", RootID:
		return RootID
	}
	return *p
}

// WireParentID is the inverse of NormalizeParentID for request bodies: the
// root is sent as null.
func WireParentID(id string) *string {
	if id == "" || id == RootID {
		return nil
	}
	return &id
}

// FolderTreeRecord is one entry of GET /folders/tree.
type FolderTreeRecord struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	ParentID *string `json:"parent_id"`
}

// ToEntry maps a tree record into a sidebar entry.
func (r FolderTreeRecord) ToEntry() FolderTreeEntry {
	return FolderTreeEntry{ID: r.ID, Name: r.Filename, ParentID: NormalizeParentID(r.ParentID)}
}

// PreCheckRequest asks the backend whether content is already stored.
type PreCheckRequest struct {
	FullHash string `json:"full_hash"`
	Size     int64  `json:"size"`
}

// PreCheckResponse reports whether the content exists and where.
type PreCheckResponse struct {
	Exists      bool    `json:"exists"`
	UploadToken *string `json:"upload_token,omitempty"`
	FileID      *string `json:"file_id,omitempty"`
}

// LinkFileRequest creates a directory entry pointing at existing storage.
type LinkFileRequest struct {
	StorageFileID   string  `json:"storage_file_id"`
	Filename        string  `json:"filename"`
	ParentID        *string `json:"parent_id"`
	ExpirationHours *int64  `json:"expiration_hours,omitempty"`
}

// InitUploadRequest opens a chunked upload session.
type InitUploadRequest struct {
	FileName  string `json:"file_name"`
	FileType  string `json:"file_type"`
	TotalSize int64  `json:"total_size"`
}

// InitUploadResponse describes the opened session.
type InitUploadResponse struct {
	UploadID  string `json:"upload_id"`
	ChunkSize int64  `json:"chunk_size"`
	Key       string `json:"key"`
}

// ChunkResponse acknowledges one uploaded part.
type ChunkResponse struct {
	ETag string `json:"etag"`
}

// CompleteUploadRequest finalizes a chunked session into the target folder.
type CompleteUploadRequest struct {
	ParentID *string `json:"parent_id"`
	Hash     string  `json:"hash,omitempty"`
}

// CreateFolderRequest creates a folder under ParentID.
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

// RenameRequest renames or re-parents a single item. Unlike the other
// requests, a move to the root sends RootID rather than null.
type RenameRequest struct {
	Name     *string `json:"name,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
}

// BulkRequest is shared by bulk-delete, bulk-move and bulk-copy.
type BulkRequest struct {
	ItemIDs  []string `json:"item_ids"`
	ParentID *string  `json:"parent_id,omitempty"`
}

// BulkResponse carries whichever count the endpoint reports.
type BulkResponse struct {
	DeletedCount int `json:"deleted_count,omitempty"`
	MovedCount   int `json:"moved_count,omitempty"`
	CopiedCount  int `json:"copied_count,omitempty"`
}

// DownloadTicket is a short-lived download URL.
type DownloadTicket struct {
	Ticket    string    `json:"ticket"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse is the backend's /health payload.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Storage  string `json:"storage"`
	Version  string `json:"version"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// UploadResponse is returned by /upload and /files/link.
type UploadResponse struct {
	FileID    string     `json:"file_id"`
	Filename  string     `json:"filename"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CompletedUpload is returned when a chunked session is finalized.
type CompletedUpload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	IsFolder bool    `json:"is_folder"`
	Size     *int64  `json:"size"`
	MimeType *string `json:"mime_type"`
	ParentID *string `json:"parent_id"`
}
