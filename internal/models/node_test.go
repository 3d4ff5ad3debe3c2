package models

import (
	"encoding/json"
	"testing"
)

func TestFileRecord_ToNode(t *testing.T) {
	raw := `{
		"id": "f1",
		"filename": "a.txt",
		"size": 12,
		"mime_type": "text/plain",
		"is_folder": false,
		"parent_id": null,
		"created_at": "2024-03-01T10:00:00Z",
		"tags": ["x"],
		"category": null,
		"extra_metadata": {"k": 1},
		"scan_status": "pending",
		"scan_result": null,
		"hash": "abc",
		"is_favorite": true,
		"has_thumbnail": false,
		"is_encrypted": false,
		"is_shared": true
	}`
	var rec FileRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	n := rec.ToNode()

	if n.ParentID != RootID {
		t.Errorf("ParentID = %q, want %q", n.ParentID, RootID)
	}
	if n.Name != "a.txt" {
		t.Errorf("Name = %q, want %q", n.Name, "a.txt")
	}
	if n.SizeOrZero() != 12 {
		t.Errorf("Size = %d, want 12", n.SizeOrZero())
	}
	if n.LastModified != 1709287200 {
		t.Errorf("LastModified = %d, want 1709287200", n.LastModified)
	}
	if n.ScanStatus != ScanPending {
		t.Errorf("ScanStatus = %q, want %q", n.ScanStatus, ScanPending)
	}
	if string(n.ExtraMetadata) != `{"k": 1}` {
		t.Errorf("ExtraMetadata = %s, want opaque passthrough", n.ExtraMetadata)
	}
	if !n.IsFavorite || !n.IsShared {
		t.Error("expected favorite and shared flags to be carried over")
	}
}

func TestNormalizeParentID(t *testing.T) {
	s := func(v string) *string { return &v }
	tests := []struct {
		in   *string
		want string
	}{
		{nil, RootID},
		{s(""), RootID},
		{s("root"), RootID},
		{s("0"), RootID},
		{s("d1"), "d1"},
	}
	for _, tt := range tests {
		if got := NormalizeParentID(tt.in); got != tt.want {
			t.Errorf("NormalizeParentID(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if WireParentID(RootID) != nil {
		t.Error("WireParentID(root) should be nil")
	}
	if p := WireParentID("d1"); p == nil || *p != "d1" {
		t.Errorf("WireParentID(d1) = %v, want d1", p)
	}
}

func TestNode_Guards(t *testing.T) {
	tests := []struct {
		name         string
		node         Node
		wantDrag     bool
		wantOpen     bool
		wantDownload bool
	}{
		{"root", NewRoot(), false, true, false},
		{"clean file", Node{ID: "f", ScanStatus: ScanClean}, true, true, true},
		{"pending file", Node{ID: "f", ScanStatus: ScanPending}, false, false, true},
		{"scanning file", Node{ID: "f", ScanStatus: ScanScanning}, false, false, true},
		{"infected file", Node{ID: "f", ScanStatus: ScanInfected}, false, true, false},
		{"folder", Node{ID: "d", IsDir: true}, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.CanDrag(); got != tt.wantDrag {
				t.Errorf("CanDrag() = %v, want %v", got, tt.wantDrag)
			}
			if got := tt.node.CanOpen(); got != tt.wantOpen {
				t.Errorf("CanOpen() = %v, want %v", got, tt.wantOpen)
			}
			if got := tt.node.CanDownload(); got != tt.wantDownload {
				t.Errorf("CanDownload() = %v, want %v", got, tt.wantDownload)
			}
		})
	}
}
