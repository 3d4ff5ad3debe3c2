// Package dragdrop moves nodes by drag and drop. A drag carries an ordered
// list of ids; a drop re-checks the target and hands the ids to the move
// operation.
package dragdrop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vaultfm/vaultfm/internal/fsmodel"
	"github.com/vaultfm/vaultfm/internal/logging"
	"github.com/vaultfm/vaultfm/internal/models"
	"github.com/vaultfm/vaultfm/internal/selection"
)

// Drag and drop errors
var (
	ErrUnknownNode  = errors.New("unknown node")
	ErrNotDraggable = errors.New("node cannot be dragged")
	ErrEmptyPayload = errors.New("empty drag payload")
	ErrDropRejected = errors.New("drop target rejected")
)

// Mover performs the move a drop resolves to.
type Mover interface {
	Move(ctx context.Context, ids []string, targetID string) error
}

// Payload is the data a drag carries.
type Payload struct {
	IDs []string
}

// Encode serializes the payload as a JSON list of ids.
func (p Payload) Encode() ([]byte, error) {
	ids := p.IDs
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

// DecodePayload parses data written by Encode.
func DecodePayload(data []byte) (Payload, error) {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return Payload{}, fmt.Errorf("invalid drag payload: %w", err)
	}
	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return Payload{}, ErrEmptyPayload
	}
	return Payload{IDs: out}, nil
}

// Engine validates drags and drops against the model.
type Engine struct {
	model     *fsmodel.Model
	selection *selection.State
	mover     Mover
	logger    *logging.Logger
}

// New creates an engine.
func New(model *fsmodel.Model, sel *selection.State, mover Mover, logger *logging.Logger) *Engine {
	return &Engine{
		model:     model,
		selection: sel,
		mover:     mover,
		logger:    logging.OrNop(logger).Component("dragdrop"),
	}
}

// DragStart builds the payload for a drag that starts on id. A node outside
// the selection is dragged alone and the selection is left as it is;
// otherwise the whole selection goes.
func (e *Engine) DragStart(id string) (Payload, error) {
	ids := e.selection.ActionTargets(id)
	for _, cur := range ids {
		n, ok := e.model.Get(cur)
		if !ok {
			return Payload{}, fmt.Errorf("%s: %w", cur, ErrUnknownNode)
		}
		if !n.CanDrag() {
			return Payload{}, fmt.Errorf("%s: %w", n.Name, ErrNotDraggable)
		}
	}
	return Payload{IDs: ids}, nil
}

// CanDrop reports whether p may be dropped on targetID: the target must be a
// folder (or the root) that is neither one of the dragged ids nor below one.
func (e *Engine) CanDrop(p Payload, targetID string) bool {
	return e.checkDrop(p, targetID) == nil
}

func (e *Engine) checkDrop(p Payload, targetID string) error {
	if targetID == "" {
		targetID = models.RootID
	}
	if len(p.IDs) == 0 {
		return ErrEmptyPayload
	}
	if targetID != models.RootID {
		target, ok := e.model.Get(targetID)
		if !ok {
			return fmt.Errorf("%s: %w", targetID, ErrUnknownNode)
		}
		if !target.IsDir {
			return fmt.Errorf("%s is not a folder: %w", target.Name, ErrDropRejected)
		}
	}
	if bad, ok := fsmodel.CycleFree(e.model.Lookup(), p.IDs, targetID); !ok {
		return fmt.Errorf("%s contains the target: %w", bad, ErrDropRejected)
	}
	return nil
}

// Drop decodes data, checks the target again and moves the ids. The root
// drop zone uses models.RootID.
func (e *Engine) Drop(ctx context.Context, data []byte, targetID string) error {
	p, err := DecodePayload(data)
	if err != nil {
		return err
	}
	if err := e.checkDrop(p, targetID); err != nil {
		e.logger.Debug().Err(err).Strs("ids", p.IDs).Str("target", targetID).Msg("Drop rejected")
		return err
	}
	if targetID == "" {
		targetID = models.RootID
	}
	e.logger.Debug().Strs("ids", p.IDs).Str("target", targetID).Msg("Drop accepted")
	return e.mover.Move(ctx, p.IDs, targetID)
}
