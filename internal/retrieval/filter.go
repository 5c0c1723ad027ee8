package retrieval

import "strings"

// ----------------------------------------------------------------------------
// Candidate filter
// ----------------------------------------------------------------------------

// SourceExtensions is the allow-list of file extensions considered
// source-like. Shared with the validator's prose scrub so both sides agree
// on what counts as a file reference.
var SourceExtensions = []string{
	".go", ".js", ".jsx", ".ts", ".tsx", ".py", ".rb", ".rs", ".java",
	".kt", ".c", ".h", ".cc", ".cpp", ".hpp", ".cs", ".php", ".swift",
	".scala", ".sh", ".sql", ".proto", ".html", ".css", ".scss",
	".json", ".yaml", ".yml", ".toml", ".md", ".txt",
}

// builtinDeny excludes vendor, build-output, and tooling-metadata
// directories. A rule-set deny/allow can override these per repository.
var builtinDeny = []string{
	"node_modules/", "vendor/", "dist/", "build/", "out/", "target/",
	".git/", ".github/", ".idea/", ".vscode/", "__pycache__/",
	".next/", "coverage/", "bower_components/", "third_party/",
	"testdata/", "fixtures/", ".min.",
}

// HasSourceExtension reports whether path ends with a recognized
// source-like extension.
func HasSourceExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range SourceExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// FilterCandidates narrows a tree listing to source-like blob entries.
// Rule precedence per entry: an allow match keeps unconditionally, then a
// rule deny match drops, then a built-in vendor/build match drops.
func FilterCandidates(entries []TreeEntry, rules Rules) []Candidate {
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		if e.Kind != "blob" || !HasSourceExtension(e.Path) {
			continue
		}
		if matchAny(e.Path, rules.Allow) {
			out = append(out, candidateOf(e))
			continue
		}
		if matchAny(e.Path, rules.Deny) || matchAny(e.Path, builtinDeny) {
			continue
		}
		out = append(out, candidateOf(e))
	}
	return out
}

func candidateOf(e TreeEntry) Candidate {
	return Candidate{Path: e.Path, Depth: pathDepth(e.Path), SizeHint: e.SizeHint}
}

func matchAny(path string, subs []string) bool {
	for _, s := range subs {
		if s != "" && strings.Contains(path, s) {
			return true
		}
	}
	return false
}
