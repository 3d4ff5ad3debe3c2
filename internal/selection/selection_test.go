package selection

import (
	"reflect"
	"testing"

	"github.com/vaultfm/vaultfm/internal/events"
	"github.com/vaultfm/vaultfm/internal/models"
)

var visible = []string{"a", "b", "c", "d", "e"}

func TestClickSemantics(t *testing.T) {
	tests := []struct {
		name   string
		clicks []struct {
			id   string
			mods Modifiers
		}
		want []string
	}{
		{
			name: "plain click replaces",
			clicks: []struct {
				id   string
				mods Modifiers
			}{{"a", Modifiers{}}, {"c", Modifiers{}}},
			want: []string{"c"},
		},
		{
			name: "ctrl toggles",
			clicks: []struct {
				id   string
				mods Modifiers
			}{{"a", Modifiers{}}, {"c", Modifiers{Ctrl: true}}, {"a", Modifiers{Ctrl: true}}},
			want: []string{"c"},
		},
		{
			name: "shift range downwards",
			clicks: []struct {
				id   string
				mods Modifiers
			}{{"b", Modifiers{}}, {"d", Modifiers{Shift: true}}},
			want: []string{"b", "c", "d"},
		},
		{
			name: "shift range upwards",
			clicks: []struct {
				id   string
				mods Modifiers
			}{{"d", Modifiers{}}, {"b", Modifiers{Shift: true}}},
			want: []string{"b", "c", "d"},
		},
		{
			name: "shift keeps anchor",
			clicks: []struct {
				id   string
				mods Modifiers
			}{{"c", Modifiers{}}, {"e", Modifiers{Shift: true}}, {"a", Modifiers{Shift: true}}},
			want: []string{"a", "b", "c"},
		},
		{
			name: "ctrl shift adds range",
			clicks: []struct {
				id   string
				mods Modifiers
			}{{"a", Modifiers{}}, {"d", Modifiers{Ctrl: true}}, {"e", Modifiers{Ctrl: true, Shift: true}}},
			want: []string{"a", "d", "e"},
		},
		{
			name: "shift without anchor acts as plain",
			clicks: []struct {
				id   string
				mods Modifiers
			}{{"c", Modifiers{Shift: true}}},
			want: []string{"c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil)
			for _, c := range tt.clicks {
				s.Click(visible, c.id, c.mods)
			}
			if got := s.Selected(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Selected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectRangeMissingEnd(t *testing.T) {
	s := New(nil)
	s.Select([]string{"a"})
	s.SelectRange(visible, "gone", "c", false)
	if got := s.Selected(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("Selected() = %v, want [c]", got)
	}
}

func TestSetFolderClearsSelection(t *testing.T) {
	s := New(nil)
	s.Select([]string{"a", "b"})
	s.Copy(nil)

	s.SetFolder("0")
	if len(s.Selected()) != 2 {
		t.Error("same folder should keep the selection")
	}

	s.SetFolder("d1")
	if len(s.Selected()) != 0 {
		t.Errorf("Selected() = %v, want empty after navigation", s.Selected())
	}
	if s.Clipboard().IsEmpty() {
		t.Error("navigation cleared the clipboard")
	}
}

func TestCutFallsBackToSelection(t *testing.T) {
	s := New(nil)
	if s.Cut(nil) {
		t.Error("Cut(nil) with empty selection should return false")
	}

	s.Select([]string{"a", "b"})
	if !s.Cut(nil) {
		t.Fatal("Cut(nil) should use the selection")
	}
	cb := s.Clipboard()
	if !reflect.DeepEqual(cb.IDs, []string{"a", "b"}) || cb.Mode != models.ClipboardCut || cb.SourceFolderID != "0" {
		t.Errorf("Clipboard() = %+v", cb)
	}

	s.Copy([]string{"x"})
	cb = s.Clipboard()
	if !reflect.DeepEqual(cb.IDs, []string{"x"}) || cb.Mode != models.ClipboardCopy {
		t.Errorf("explicit ids ignored: %+v", cb)
	}
}

func TestActionTargets(t *testing.T) {
	s := New(nil)
	s.Select([]string{"a", "b"})

	if got := s.ActionTargets("b"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("ActionTargets(selected) = %v, want whole selection", got)
	}
	if got := s.ActionTargets("z"); !reflect.DeepEqual(got, []string{"z"}) {
		t.Errorf("ActionTargets(unselected) = %v, want [z]", got)
	}
	if got := s.Selected(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("ActionTargets changed the selection: %v", got)
	}
}

func TestCanPaste(t *testing.T) {
	s := New(nil)
	if s.CanPaste() {
		t.Error("empty clipboard should not paste")
	}

	s.Cut([]string{"f1"})
	if s.CanPaste() {
		t.Error("paste into the source folder should be disallowed")
	}
	s.SetFolder("d1")
	if !s.CanPaste() {
		t.Error("paste into another folder should be allowed")
	}
	s.ClearClipboard()
	if s.CanPaste() {
		t.Error("cleared clipboard should not paste")
	}
}

func TestClipboardIsACopy(t *testing.T) {
	s := New(nil)
	s.Copy([]string{"a"})
	cb := s.Clipboard()
	cb.IDs[0] = "mutated"
	if s.Clipboard().IDs[0] != "a" {
		t.Error("Clipboard() exposes internal state")
	}
}

func TestEvents(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	sel := bus.Subscribe(events.EventSelectionChanged)
	clip := bus.Subscribe(events.EventClipboardChanged)

	s := New(bus)
	s.Toggle("a")
	ev := (<-sel).(*events.SelectionChangedEvent)
	if !reflect.DeepEqual(ev.SelectedIDs, []string{"a"}) {
		t.Errorf("SelectedIDs = %v, want [a]", ev.SelectedIDs)
	}

	s.Copy(nil)
	cev := (<-clip).(*events.ClipboardChangedEvent)
	if cev.Clipboard.Mode != models.ClipboardCopy {
		t.Errorf("Mode = %q, want copy", cev.Clipboard.Mode)
	}
}
