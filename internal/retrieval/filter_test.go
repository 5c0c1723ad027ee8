package retrieval

import "testing"

func paths(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Path
	}
	return out
}

func TestFilterKeepsSourceBlobsOnly(t *testing.T) {
	entries := []TreeEntry{
		{Path: "main.go", Kind: "blob"},
		{Path: "src", Kind: "tree"},
		{Path: "logo.png", Kind: "blob"},
		{Path: "src/app.ts", Kind: "blob"},
	}
	got := FilterCandidates(entries, Rules{})
	want := []string{"main.go", "src/app.ts"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", paths(got), want)
	}
	for i := range want {
		if got[i].Path != want[i] {
			t.Fatalf("got %v, want %v", paths(got), want)
		}
	}
	if got[1].Depth != 2 {
		t.Fatalf("src/app.ts depth = %d, want 2", got[1].Depth)
	}
}

func TestFilterBuiltinDeny(t *testing.T) {
	entries := []TreeEntry{
		{Path: "node_modules/lodash/index.js", Kind: "blob"},
		{Path: "dist/bundle.js", Kind: "blob"},
		{Path: "server.js", Kind: "blob"},
	}
	got := FilterCandidates(entries, Rules{})
	if len(got) != 1 || got[0].Path != "server.js" {
		t.Fatalf("got %v, want [server.js]", paths(got))
	}
}

func TestFilterRulePrecedence(t *testing.T) {
	entries := []TreeEntry{
		{Path: "vendor/patched/driver.go", Kind: "blob"},
		{Path: "internal/db/db.go", Kind: "blob"},
		{Path: "internal/legacy/old.go", Kind: "blob"},
	}

	// Allow overrides both the rule deny and the built-in vendor deny.
	got := FilterCandidates(entries, Rules{
		Allow: []string{"vendor/patched/"},
		Deny:  []string{"internal/legacy/", "vendor/patched/"},
	})
	want := map[string]bool{"vendor/patched/driver.go": true, "internal/db/db.go": true}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 entries", paths(got))
	}
	for _, c := range got {
		if !want[c.Path] {
			t.Fatalf("unexpected survivor %q", c.Path)
		}
	}
}

func TestFilterEmptyTree(t *testing.T) {
	if got := FilterCandidates(nil, Rules{}); len(got) != 0 {
		t.Fatalf("expected empty candidates, got %v", paths(got))
	}
}
