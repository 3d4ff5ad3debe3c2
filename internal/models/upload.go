package models

// UploadState is the lifecycle of one logical file in an upload batch.
type UploadState string

const (
	UploadQueued     UploadState = "queued"
	UploadHashing    UploadState = "hashing"
	UploadUploading  UploadState = "uploading"
	UploadProcessing UploadState = "processing"
	UploadCompleted  UploadState = "completed"
	UploadError      UploadState = "error"
)

// IsTerminal reports whether no further transitions will happen.
func (s UploadState) IsTerminal() bool {
	return s == UploadCompleted || s == UploadError
}

// UploadStatus tracks one file being uploaded, independent of chunking.
type UploadStatus struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Progress int         `json:"progress"` // 0-100
	Status   UploadState `json:"status"`
	Error    string      `json:"error,omitempty"`
	Size     int64       `json:"size,omitempty"`
}
