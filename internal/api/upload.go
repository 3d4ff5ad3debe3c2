package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/vaultfm/vaultfm/internal/models"
)

// ProgressFunc receives the cumulative number of bytes sent for one body.
type ProgressFunc func(sent int64)

// progressReader counts bytes read through it.
type progressReader struct {
	r        io.Reader
	sent     atomic.Int64
	callback ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		total := p.sent.Add(int64(n))
		if p.callback != nil {
			p.callback(total)
		}
	}
	return n, err
}

// PreCheck asks whether content with the given hash and size is already
// stored. When it is, the response carries the storage id to link.
func (c *Client) PreCheck(ctx context.Context, hash string, size int64) (*models.PreCheckResponse, error) {
	var resp models.PreCheckResponse
	req := models.PreCheckRequest{FullHash: hash, Size: size}
	if err := c.doJSON(ctx, "pre-check", nethttp.MethodPost, "/pre-check", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkFile creates a directory entry named filename under parentID that
// points at already-stored content.
func (c *Client) LinkFile(ctx context.Context, storageID, filename, parentID string) (*models.UploadResponse, error) {
	var resp models.UploadResponse
	req := models.LinkFileRequest{
		StorageFileID: storageID,
		Filename:      filename,
		ParentID:      models.WireParentID(parentID),
	}
	if err := c.doJSON(ctx, "link file", nethttp.MethodPost, "/files/link", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadSimple sends the whole body in one multipart request. The body is
// streamed through a pipe, so it is never buffered in memory.
func (c *Client) UploadSimple(ctx context.Context, filename string, body io.Reader, parentID string, progress ProgressFunc) (*models.UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, filename, &progressReader{r: body, callback: progress}, parentID)
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, nethttp.MethodPost, "/upload", nil, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.send(c.uploadClient, req)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("upload: %w", err)
	}

	var out models.UploadResponse
	if err := decodeResponse("upload", resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func writeMultipart(mw *multipart.Writer, filename string, body io.Reader, parentID string) error {
	// parent_id is written first so the backend knows the target before the file part
	if parentID != "" && parentID != models.RootID {
		if err := mw.WriteField("parent_id", parentID); err != nil {
			return fmt.Errorf("failed to write parent_id field: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("failed to copy file body: %w", err)
	}
	return mw.Close()
}

// InitUpload opens a chunked upload session.
func (c *Client) InitUpload(ctx context.Context, filename, mimeType string, size int64) (*models.InitUploadResponse, error) {
	var resp models.InitUploadResponse
	req := models.InitUploadRequest{FileName: filename, FileType: mimeType, TotalSize: size}
	if err := c.doJSON(ctx, "init upload", nethttp.MethodPost, "/files/upload/init", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadChunk sends one part of a session. Part numbers start at 1.
func (c *Client) UploadChunk(ctx context.Context, uploadID string, partNumber int, data []byte, progress ProgressFunc) (string, error) {
	if partNumber < 1 {
		return "", fmt.Errorf("invalid part number %d", partNumber)
	}
	path := "/files/upload/" + url.PathEscape(uploadID) + "/chunk/" + strconv.Itoa(partNumber)
	body := &progressReader{r: bytes.NewReader(data), callback: progress}

	req, err := c.newRequest(ctx, nethttp.MethodPut, path, nil, body)
	if err != nil {
		return "", err
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.send(c.uploadClient, req)
	if err != nil {
		return "", fmt.Errorf("upload chunk %d: %w", partNumber, err)
	}
	var out models.ChunkResponse
	if err := decodeResponse(fmt.Sprintf("upload chunk %d", partNumber), resp, &out); err != nil {
		return "", err
	}
	return out.ETag, nil
}

// CompleteUpload finalizes a session into parentID.
func (c *Client) CompleteUpload(ctx context.Context, uploadID, parentID, hash string) (*models.CompletedUpload, error) {
	var resp models.CompletedUpload
	req := models.CompleteUploadRequest{ParentID: models.WireParentID(parentID), Hash: hash}
	path := "/files/upload/" + url.PathEscape(uploadID) + "/complete"
	if err := c.doJSON(ctx, "complete upload", nethttp.MethodPost, path, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AbortUpload discards a session and its uploaded parts.
func (c *Client) AbortUpload(ctx context.Context, uploadID string) error {
	path := "/files/upload/" + url.PathEscape(uploadID)
	return c.doJSON(ctx, "abort upload", nethttp.MethodDelete, path, nil, nil, nil)
}
