package bulkops

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors. None of them reach the backend.
var (
	ErrNothingSelected = errors.New("no items selected")
	ErrCancelled       = errors.New("operation cancelled")
	ErrCycle           = errors.New("cannot move a folder into itself or one of its subfolders")
	ErrInvalidTarget   = errors.New("target is not a folder")
	ErrNotMovable      = errors.New("item cannot be moved while it is being scanned or is infected")
	ErrScanPending     = errors.New("item is still being scanned")
	ErrPasteNotAllowed = errors.New("nothing to paste into this folder")
	ErrInvalidName     = errors.New("name must be between 1 and 255 characters")
	ErrCopyUnsupported = errors.New("backend does not support copy")
)

// PartialError reports a sequential fallback that stopped at a failure.
// Completed lists the ids processed before it, in submission order.
type PartialError struct {
	Op        string
	Completed []string
	FailedID  string
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s failed on %s after %d completed [%s]: %v",
		e.Op, e.FailedID, len(e.Completed), strings.Join(e.Completed, ", "), e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}
