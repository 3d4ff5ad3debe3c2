package api

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vaultfm/vaultfm/internal/models"
)

// ListFiles returns one page of the children of parentID.
func (c *Client) ListFiles(ctx context.Context, parentID string, limit, offset int) ([]models.Node, error) {
	q := url.Values{}
	// The backend reads a missing parent_id as the root, "0" is not an id it knows
	if parentID != "" && parentID != models.RootID {
		q.Set("parent_id", parentID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var records []models.FileRecord
	if err := c.doJSON(ctx, "list files", nethttp.MethodGet, "/files", q, nil, &records); err != nil {
		return nil, err
	}
	return models.RecordsToNodes(records), nil
}

// SearchQuery holds the optional filters of a search listing.
type SearchQuery struct {
	Text       string
	Regex      bool
	Wildcard   bool
	Similarity bool
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}

func (q SearchQuery) values() url.Values {
	v := url.Values{}
	v.Set("search", q.Text)
	if q.Regex {
		v.Set("regex", "true")
	}
	if q.Wildcard {
		v.Set("wildcard", "true")
	}
	if q.Similarity {
		v.Set("similarity", "true")
	}
	if q.StartDate != nil {
		v.Set("start_date", q.StartDate.UTC().Format(time.RFC3339))
	}
	if q.EndDate != nil {
		v.Set("end_date", q.EndDate.UTC().Format(time.RFC3339))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// Search runs a search listing. Results span folders and are not merged into
// the file-system model.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]models.Node, error) {
	var records []models.FileRecord
	if err := c.doJSON(ctx, "search", nethttp.MethodGet, "/files", q.values(), nil, &records); err != nil {
		return nil, err
	}
	return models.RecordsToNodes(records), nil
}

// FolderPath returns the ancestor chain of id, root first. The folder itself
// is the last element.
func (c *Client) FolderPath(ctx context.Context, id string) ([]models.Node, error) {
	var records []models.FileRecord
	path := "/files/" + url.PathEscape(id) + "/path"
	if err := c.doJSON(ctx, "folder path", nethttp.MethodGet, path, nil, nil, &records); err != nil {
		return nil, err
	}
	return models.RecordsToNodes(records), nil
}

// FolderTree returns every folder of the user as lightweight sidebar entries.
func (c *Client) FolderTree(ctx context.Context) ([]models.FolderTreeEntry, error) {
	var records []models.FolderTreeRecord
	if err := c.doJSON(ctx, "folder tree", nethttp.MethodGet, "/folders/tree", nil, nil, &records); err != nil {
		return nil, err
	}
	entries := make([]models.FolderTreeEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, r.ToEntry())
	}
	return entries, nil
}

// CreateFolder creates a folder named name under parentID.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (models.Node, error) {
	req := models.CreateFolderRequest{Name: name, ParentID: models.WireParentID(parentID)}
	var rec models.FileRecord
	if err := c.doJSON(ctx, "create folder", nethttp.MethodPost, "/folders", nil, req, &rec); err != nil {
		return models.Node{}, err
	}
	return rec.ToNode(), nil
}

// Delete deletes one file or folder.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, "delete", nethttp.MethodDelete, "/files/"+url.PathEscape(id), nil, nil, nil)
}

// BulkDelete deletes ids in one call and returns the backend's count.
func (c *Client) BulkDelete(ctx context.Context, ids []string) (int, error) {
	var resp models.BulkResponse
	req := models.BulkRequest{ItemIDs: ids}
	if err := c.doJSON(ctx, "bulk delete", nethttp.MethodPost, "/files/bulk-delete", nil, req, &resp); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

// Rename renames one item.
func (c *Client) Rename(ctx context.Context, id, name string) (models.Node, error) {
	return c.updateItem(ctx, "rename", id, models.RenameRequest{Name: &name})
}

// Move re-parents one item through the rename endpoint.
func (c *Client) Move(ctx context.Context, id, parentID string) error {
	if parentID == "" {
		parentID = models.RootID
	}
	_, err := c.updateItem(ctx, "move", id, models.RenameRequest{ParentID: &parentID})
	return err
}

func (c *Client) updateItem(ctx context.Context, op, id string, req models.RenameRequest) (models.Node, error) {
	var rec models.FileRecord
	path := "/files/" + url.PathEscape(id) + "/rename"
	if err := c.doJSON(ctx, op, nethttp.MethodPut, path, nil, req, &rec); err != nil {
		return models.Node{}, err
	}
	return rec.ToNode(), nil
}

// BulkMove moves ids under parentID in one call.
func (c *Client) BulkMove(ctx context.Context, ids []string, parentID string) (int, error) {
	var resp models.BulkResponse
	req := models.BulkRequest{ItemIDs: ids, ParentID: models.WireParentID(parentID)}
	if err := c.doJSON(ctx, "bulk move", nethttp.MethodPost, "/files/bulk-move", nil, req, &resp); err != nil {
		return 0, err
	}
	return resp.MovedCount, nil
}

// BulkCopy copies ids under parentID in one call.
func (c *Client) BulkCopy(ctx context.Context, ids []string, parentID string) (int, error) {
	var resp models.BulkResponse
	req := models.BulkRequest{ItemIDs: ids, ParentID: models.WireParentID(parentID)}
	if err := c.doJSON(ctx, "bulk copy", nethttp.MethodPost, "/files/bulk-copy", nil, req, &resp); err != nil {
		return 0, err
	}
	return resp.CopiedCount, nil
}

// ToggleFavorite flips the favorite flag of id and returns the updated item.
func (c *Client) ToggleFavorite(ctx context.Context, id string) (models.Node, error) {
	var rec models.FileRecord
	path := "/files/" + url.PathEscape(id) + "/favorite"
	if err := c.doJSON(ctx, "toggle favorite", nethttp.MethodPost, path, nil, nil, &rec); err != nil {
		return models.Node{}, err
	}
	return rec.ToNode(), nil
}

// DownloadTicket issues a short-lived download URL for id. A relative URL
// from the backend is resolved against the base URL.
func (c *Client) DownloadTicket(ctx context.Context, id string) (*models.DownloadTicket, error) {
	var ticket models.DownloadTicket
	path := "/files/" + url.PathEscape(id) + "/ticket"
	if err := c.doJSON(ctx, "download ticket", nethttp.MethodPost, path, nil, nil, &ticket); err != nil {
		return nil, err
	}
	if ticket.URL != "" {
		base, err := url.Parse(c.baseURL + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid base url: %w", err)
		}
		ref, err := url.Parse(ticket.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid ticket url %q: %w", ticket.URL, err)
		}
		ticket.URL = base.ResolveReference(ref).String()
	}
	return &ticket, nil
}
