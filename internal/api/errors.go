package api

import (
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
)

// Sentinel errors matched by StatusError.Is.
var (
	// ErrUnauthorized indicates the backend rejected the bearer token (401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller may not act on the item (403).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the item no longer exists server-side (404).
	ErrNotFound = errors.New("not found")
	// ErrFileAlreadyExists indicates a name collision in the target folder (409).
	ErrFileAlreadyExists = errors.New("file already exists")
	// ErrPayloadTooLarge indicates the backend refused the upload size (413).
	ErrPayloadTooLarge = errors.New("payload too large")
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// StatusError is returned for every non-2xx response.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func newStatusError(op string, resp *nethttp.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.Code, e.Body)
}

// StatusCode returns the HTTP status code. Used by retry classification.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// Is lets callers match on the sentinel errors with errors.Is.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Code == nethttp.StatusUnauthorized
	case ErrForbidden:
		return e.Code == nethttp.StatusForbidden
	case ErrNotFound:
		return e.Code == nethttp.StatusNotFound
	case ErrFileAlreadyExists:
		return e.Code == nethttp.StatusConflict
	case ErrPayloadTooLarge:
		return e.Code == nethttp.StatusRequestEntityTooLarge
	}
	return false
}

// IsFileExistsError checks if an error indicates a duplicate name.
//
// Detected from:
//  1. A 409 StatusError or wrapped ErrFileAlreadyExists
//  2. Error messages containing "already exists", "duplicate" or "conflict"
func IsFileExistsError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFileAlreadyExists) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{"already exists", "duplicate", "conflict"} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
