package api

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"

	"github.com/vaultfm/vaultfm/internal/models"
)

// CreateShare creates a share link.
func (c *Client) CreateShare(ctx context.Context, req models.CreateShareRequest) (*models.Share, error) {
	if req.ExpiresInHours <= 0 {
		return nil, fmt.Errorf("expires_in_hours must be positive, got %d", req.ExpiresInHours)
	}
	var share models.Share
	if err := c.doJSON(ctx, "create share", nethttp.MethodPost, "/shares", nil, req, &share); err != nil {
		return nil, err
	}
	return &share, nil
}

// ListShares lists the caller's shares, optionally only those on fileID.
func (c *Client) ListShares(ctx context.Context, fileID string) ([]models.Share, error) {
	var q url.Values
	if fileID != "" {
		q = url.Values{"user_file_id": {fileID}}
	}
	var shares []models.Share
	if err := c.doJSON(ctx, "list shares", nethttp.MethodGet, "/shares", q, nil, &shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// RevokeShare deletes a share.
func (c *Client) RevokeShare(ctx context.Context, id string) error {
	return c.doJSON(ctx, "revoke share", nethttp.MethodDelete, "/shares/"+url.PathEscape(id), nil, nil, nil)
}

// ShareLogs returns the access log of a share.
func (c *Client) ShareLogs(ctx context.Context, id string) ([]models.ShareAccessLog, error) {
	var logs []models.ShareAccessLog
	path := "/shares/" + url.PathEscape(id) + "/logs"
	if err := c.doJSON(ctx, "share logs", nethttp.MethodGet, path, nil, nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
