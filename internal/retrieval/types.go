// Package retrieval selects a bounded, budget-constrained subset of a
// repository's files for a natural-language question: candidate filtering,
// lexical relevance scoring, optional semantic re-ranking, and budgeted
// selection.
package retrieval

import (
	"context"
	"strings"
)

// TreeEntry is one entry of a recursive repository tree listing.
type TreeEntry struct {
	Path     string
	Kind     string // "blob" or "tree"
	SizeHint int64  // 0 when the listing did not report a size
}

// FileStore lists a repository tree and fetches raw file contents.
// Implementations surface githubstore.ErrNotFound / ErrRateLimited.
type FileStore interface {
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
	ListTree(ctx context.Context, owner, repo, ref string) ([]TreeEntry, error)
	FileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
}

// Embedder is the optional semantic capability used by the re-ranker.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Rules are per-repository path-substring overrides. Allow wins over deny;
// deny wins over the built-in vendor/build exclusions.
type Rules struct {
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
}

// RuleProvider resolves the Rules for an "owner/repo" key, if any.
type RuleProvider interface {
	Rules(repoKey string) (Rules, bool)
}

// Candidate is a tree entry that survived filtering.
type Candidate struct {
	Path     string
	Depth    int
	SizeHint int64
}

// ScoredFile carries per-candidate content and ranking signals. It is owned
// by one retrieval call and discarded when the call returns.
type ScoredFile struct {
	Path      string
	Content   string
	ByteSize  int
	Truncated bool
	Lexical   float64
	Semantic  float64
	Final     float64
	Depth     int
}

// SuppliedFile is one file handed to prompt assembly.
type SuppliedFile struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

// RetrievalResult is the sole artifact handed to prompt assembly and the
// ground truth the validator later checks citations against.
type RetrievalResult struct {
	Files      []SuppliedFile
	TotalBytes int
}

// Paths returns the supplied paths in retrieval order.
func (r *RetrievalResult) Paths() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Files))
	for i, f := range r.Files {
		out[i] = f.Path
	}
	return out
}

// Has reports whether path was supplied.
func (r *RetrievalResult) Has(path string) bool {
	if r == nil {
		return false
	}
	for _, f := range r.Files {
		if f.Path == path {
			return true
		}
	}
	return false
}

// Limits bound what one retrieval may send to the model.
type Limits struct {
	MaxFiles int
	MaxBytes int
}

// DefaultLimits are applied when the caller leaves a cap unset.
var DefaultLimits = Limits{MaxFiles: 10, MaxBytes: 200_000}

func (l Limits) withDefaults() Limits {
	if l.MaxFiles <= 0 {
		l.MaxFiles = DefaultLimits.MaxFiles
	}
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultLimits.MaxBytes
	}
	return l
}

// pathDepth counts path-separator-delimited segments ("a/b/c.go" -> 3).
func pathDepth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, "/") + 1
}

// RepoKey builds the "owner/repo" key used by rule stores.
func RepoKey(owner, repo string) string {
	return owner + "/" + repo
}
