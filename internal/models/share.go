package models

import "time"

// Share types and permissions accepted by POST /shares.
const (
	SharePublic = "public"
	ShareUser   = "user"

	PermissionView     = "view"
	PermissionDownload = "download"
)

// Share is a share link on a file or folder.
type Share struct {
	ID               string    `json:"id"`
	UserFileID       string    `json:"user_file_id"`
	ShareToken       string    `json:"share_token"`
	ShareType        string    `json:"share_type"`
	SharedWithUserID *string   `json:"shared_with_user_id"`
	HasPassword      bool      `json:"has_password"`
	Permission       string    `json:"permission"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	Filename         *string   `json:"filename"`
	IsFolder         *bool     `json:"is_folder"`
}

// CreateShareRequest is the body of POST /shares.
type CreateShareRequest struct {
	UserFileID       string  `json:"user_file_id"`
	ShareType        string  `json:"share_type"`
	SharedWithUserID *string `json:"shared_with_user_id,omitempty"`
	Password         *string `json:"password,omitempty"`
	Permission       string  `json:"permission"`
	ExpiresInHours   int64   `json:"expires_in_hours"`
}

// ShareAccessLog is one access recorded against a share.
type ShareAccessLog struct {
	ID               string    `json:"id"`
	AccessedByUserID *string   `json:"accessed_by_user_id"`
	IPAddress        *string   `json:"ip_address"`
	UserAgent        *string   `json:"user_agent"`
	Action           string    `json:"action"`
	AccessedAt       time.Time `json:"accessed_at"`
}
