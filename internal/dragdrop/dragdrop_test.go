package dragdrop

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vaultfm/vaultfm/internal/fsmodel"
	"github.com/vaultfm/vaultfm/internal/models"
	"github.com/vaultfm/vaultfm/internal/selection"
)

type fakeMover struct {
	ids    []string
	target string
	calls  int
}

func (m *fakeMover) Move(_ context.Context, ids []string, targetID string) error {
	m.calls++
	m.ids = ids
	m.target = targetID
	return nil
}

// root: a(dir) > b(dir) > c(dir); f.txt; p.bin (pending)
func newEngine(t *testing.T) (*Engine, *selection.State, *fakeMover) {
	t.Helper()
	model := fsmodel.New(nil)
	model.MergeFolder("0", []models.Node{
		{ID: "a", Name: "a", IsDir: true},
		{ID: "f", Name: "f.txt"},
		{ID: "p", Name: "p.bin", ScanStatus: models.ScanPending},
	})
	model.MergeFolder("a", []models.Node{{ID: "b", Name: "b", IsDir: true}})
	model.MergeFolder("b", []models.Node{{ID: "c", Name: "c", IsDir: true}})

	sel := selection.New(nil)
	mover := &fakeMover{}
	return New(model, sel, mover, nil), sel, mover
}

func TestDragStartNarrowsToUnselectedNode(t *testing.T) {
	e, sel, _ := newEngine(t)
	sel.Select([]string{"a", "f"})

	p, err := e.DragStart("b")
	if err != nil {
		t.Fatalf("DragStart() error = %v", err)
	}
	if !reflect.DeepEqual(p.IDs, []string{"b"}) {
		t.Errorf("payload = %v, want [b]", p.IDs)
	}
	if got := sel.Selected(); len(got) != 2 {
		t.Errorf("selection changed to %v", got)
	}

	p, err = e.DragStart("f")
	if err != nil {
		t.Fatalf("DragStart() error = %v", err)
	}
	if !reflect.DeepEqual(p.IDs, []string{"a", "f"}) {
		t.Errorf("payload = %v, want [a f]", p.IDs)
	}
}

func TestDragStartRejectsUndraggable(t *testing.T) {
	e, _, _ := newEngine(t)
	tests := []struct {
		id   string
		want error
	}{
		{"p", ErrNotDraggable},
		{"0", ErrNotDraggable},
		{"missing", ErrUnknownNode},
	}
	for _, tt := range tests {
		if _, err := e.DragStart(tt.id); !errors.Is(err, tt.want) {
			t.Errorf("DragStart(%q) error = %v, want %v", tt.id, err, tt.want)
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	data, err := Payload{IDs: []string{"z", "a", "m"}}.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["z","a","m"]` {
		t.Errorf("Encode() = %s", data)
	}
	p, err := DecodePayload(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.IDs, []string{"z", "a", "m"}) {
		t.Errorf("DecodePayload() = %v", p.IDs)
	}

	if _, err := DecodePayload([]byte(`[]`)); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("empty payload error = %v", err)
	}
	if _, err := DecodePayload([]byte(`not json`)); err == nil {
		t.Error("expected error for garbage payload")
	}
}

func TestCanDrop(t *testing.T) {
	e, _, _ := newEngine(t)
	tests := []struct {
		name   string
		ids    []string
		target string
		want   bool
	}{
		{"into sibling folder", []string{"f"}, "a", true},
		{"onto itself", []string{"a"}, "a", false},
		{"into own child", []string{"a"}, "b", false},
		{"into deep descendant", []string{"a"}, "c", false},
		{"child to root zone", []string{"b"}, "0", true},
		{"empty target means root", []string{"b"}, "", true},
		{"onto a file", []string{"a"}, "f", false},
		{"unknown target", []string{"f"}, "nope", false},
		{"mixed with one bad id", []string{"f", "a"}, "c", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.CanDrop(Payload{IDs: tt.ids}, tt.target); got != tt.want {
				t.Errorf("CanDrop(%v, %q) = %v, want %v", tt.ids, tt.target, got, tt.want)
			}
		})
	}
}

func TestDropDelegatesToMove(t *testing.T) {
	e, _, mover := newEngine(t)

	if err := e.Drop(context.Background(), []byte(`["f","b"]`), ""); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if mover.calls != 1 || mover.target != "0" || !reflect.DeepEqual(mover.ids, []string{"f", "b"}) {
		t.Errorf("mover = %+v", mover)
	}

	err := e.Drop(context.Background(), []byte(`["a"]`), "c")
	if !errors.Is(err, ErrDropRejected) {
		t.Errorf("cyclic Drop() error = %v, want ErrDropRejected", err)
	}
	if mover.calls != 1 {
		t.Error("rejected drop reached the mover")
	}
}
