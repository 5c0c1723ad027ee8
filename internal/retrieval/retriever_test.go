package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeStore struct {
	branch    string
	branchErr error
	tree      []TreeEntry
	treeErr   error
	files     map[string]string
}

func (f *fakeStore) DefaultBranch(_ context.Context, _, _ string) (string, error) {
	return f.branch, f.branchErr
}

func (f *fakeStore) ListTree(_ context.Context, _, _, _ string) ([]TreeEntry, error) {
	return f.tree, f.treeErr
}

func (f *fakeStore) FileContent(_ context.Context, _, _, path, _ string) ([]byte, error) {
	c, ok := f.files[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(c), nil
}

type fixedRules struct {
	rules Rules
}

func (f fixedRules) Rules(string) (Rules, bool) { return f.rules, true }

func TestSelectFilesEndToEnd(t *testing.T) {
	store := &fakeStore{
		branch: "main",
		tree: []TreeEntry{
			{Path: "auth/login.js", Kind: "blob"},
			{Path: "utils.js", Kind: "blob"},
			{Path: "node_modules/x/index.js", Kind: "blob"},
		},
		files: map[string]string{
			"auth/login.js": "export function login() {}",
			"utils.js":      "export function pad() {}",
		},
	}

	var msgs []string
	r := NewRetriever(store, nil, nil)
	res, err := r.SelectFiles(context.Background(), "acme", "app", "", "How does auth login work?", Limits{}, func(m string) {
		msgs = append(msgs, m)
	})
	if err != nil {
		t.Fatalf("SelectFiles: %v", err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("files = %v", res.Paths())
	}
	if res.Files[0].Path != "auth/login.js" {
		t.Fatalf("top file = %q", res.Files[0].Path)
	}
	if len(msgs) == 0 {
		t.Fatalf("expected progress messages")
	}
}

func TestSelectFilesBranchResolutionFails(t *testing.T) {
	store := &fakeStore{branchErr: errors.New("repo not found")}
	r := NewRetriever(store, nil, nil)
	_, err := r.SelectFiles(context.Background(), "acme", "gone", "", "q", Limits{}, nil)
	if err == nil || !strings.Contains(err.Error(), "default branch") {
		t.Fatalf("err = %v", err)
	}
}

func TestSelectFilesEmptyRepository(t *testing.T) {
	store := &fakeStore{branch: "main"}
	r := NewRetriever(store, nil, nil)
	res, err := r.SelectFiles(context.Background(), "acme", "empty", "", "q", Limits{}, nil)
	if err != nil {
		t.Fatalf("SelectFiles: %v", err)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected zero files, got %v", res.Paths())
	}
}

func TestSelectFilesAppliesRepoRules(t *testing.T) {
	store := &fakeStore{
		branch: "main",
		tree: []TreeEntry{
			{Path: "src/app.go", Kind: "blob"},
			{Path: "src/legacy/old.go", Kind: "blob"},
		},
		files: map[string]string{
			"src/app.go":        "package app",
			"src/legacy/old.go": "package legacy",
		},
	}
	r := NewRetriever(store, nil, fixedRules{Rules{Deny: []string{"src/legacy/"}}})
	res, err := r.SelectFiles(context.Background(), "acme", "app", "main", "anything", Limits{}, nil)
	if err != nil {
		t.Fatalf("SelectFiles: %v", err)
	}
	if res.Has("src/legacy/old.go") {
		t.Fatalf("denied path supplied: %v", res.Paths())
	}
}
