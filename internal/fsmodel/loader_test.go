package fsmodel

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/vaultfm/vaultfm/internal/models"
)

type fakeLister struct {
	pages map[string][]models.Node
	calls int
	err   error
}

func (f *fakeLister) ListFiles(_ context.Context, parentID string, limit, offset int) ([]models.Node, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	all := f.pages[parentID]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

type fakePaths struct {
	chain []models.Node
	err   error
}

func (f *fakePaths) FolderPath(context.Context, string) ([]models.Node, error) {
	return f.chain, f.err
}

func TestRefreshPaginates(t *testing.T) {
	var page []models.Node
	for i := 0; i < 5; i++ {
		page = append(page, file(fmt.Sprintf("f%d", i), "0", fmt.Sprintf("f%d", i)))
	}
	lister := &fakeLister{pages: map[string][]models.Node{"0": page}}
	l := NewLoader(New(nil), lister, nil, nil)
	l.SetPageSize(2)

	got, err := l.Refresh(context.Background(), "0", false)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(got) != 5 {
		t.Errorf("len = %d, want 5", len(got))
	}
	// 2 + 2 + 1 (short page ends the loop)
	if lister.calls != 3 {
		t.Errorf("calls = %d, want 3", lister.calls)
	}
	if n := len(l.Model().Children("0")); n != 5 {
		t.Errorf("children = %d, want 5", n)
	}
}

func TestRefreshFailureLeavesModelUnchanged(t *testing.T) {
	m := New(nil)
	m.MergeFolder("0", []models.Node{file("a", "0", "a")})
	before := m.Nodes()

	l := NewLoader(m, &fakeLister{err: errors.New("connection reset")}, nil, nil)
	if _, err := l.Refresh(context.Background(), "0", true); err == nil {
		t.Fatal("Refresh() should fail")
	}
	if !reflect.DeepEqual(before, m.Nodes()) {
		t.Error("failed refresh changed the model")
	}
}

func TestReveal(t *testing.T) {
	lister := &fakeLister{pages: map[string][]models.Node{"c": {file("x", "c", "x")}}}
	paths := &fakePaths{chain: []models.Node{dir("a", "0", "a"), dir("b", "a", "b"), dir("c", "b", "c")}}
	l := NewLoader(New(nil), lister, paths, nil)

	if _, err := l.Reveal(context.Background(), "c"); err != nil {
		t.Fatalf("Reveal() error = %v", err)
	}
	crumbs := ids(l.Model().Ancestors("x"))
	if !reflect.DeepEqual(crumbs, []string{"0", "a", "b", "c", "x"}) {
		t.Errorf("Ancestors(x) = %v", crumbs)
	}
}

func TestRevealPathFailure(t *testing.T) {
	l := NewLoader(New(nil), &fakeLister{}, &fakePaths{err: errors.New("not found")}, nil)
	if _, err := l.Reveal(context.Background(), "c"); err == nil {
		t.Error("Reveal() should fail when the path lookup fails")
	}
}
