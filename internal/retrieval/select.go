package retrieval

import (
	"context"
	"strings"
)

// ----------------------------------------------------------------------------
// Budgeted selector
// ----------------------------------------------------------------------------

// manifestFiles are admitted even when they score poorly on relevance, so
// dependency metadata is always available to the model when present.
var manifestFiles = []string{
	"package.json", "go.mod", "Cargo.toml", "requirements.txt",
	"pom.xml", "Gemfile", "composer.json",
}

// selectBudgeted walks the ranked files in order, admitting until either cap
// would be exceeded. Ranking order is authoritative over packing efficiency:
// once a file does not fit, no later file is considered. Afterwards missing
// manifest files are back-filled if they exist and still fit both caps.
func selectBudgeted(ctx context.Context, ranked []ScoredFile, limits Limits, fetch fetchFunc) RetrievalResult {
	limits = limits.withDefaults()
	var res RetrievalResult

	// Budgets count delivered bytes, so the truncation marker is stripped
	// before admission accounting.
	for _, f := range ranked {
		sf := supplied(f.Path, f.Content)
		if len(res.Files) >= limits.MaxFiles || res.TotalBytes+len(sf.Content) > limits.MaxBytes {
			break
		}
		res.Files = append(res.Files, sf)
		res.TotalBytes += len(sf.Content)
	}

	for _, name := range manifestFiles {
		if len(res.Files) >= limits.MaxFiles {
			break
		}
		if res.Has(name) {
			continue
		}
		raw, err := fetch(ctx, name)
		if err != nil {
			continue
		}
		sf := SuppliedFile{Path: name, Content: string(raw)}
		if len(sf.Content) > truncateBytes {
			sf.Content = sf.Content[:truncateBytes]
			sf.Truncated = true
		}
		if res.TotalBytes+len(sf.Content) > limits.MaxBytes {
			continue
		}
		res.Files = append(res.Files, sf)
		res.TotalBytes += len(sf.Content)
	}
	return res
}

// supplied strips the truncation marker and records it as a boolean.
func supplied(path, content string) SuppliedFile {
	truncated := strings.HasSuffix(content, truncationMarker)
	if truncated {
		content = strings.TrimSuffix(content, truncationMarker)
	}
	return SuppliedFile{Path: path, Content: content, Truncated: truncated}
}
