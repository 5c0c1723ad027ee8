package retrieval

import (
	"context"
	"fmt"
)

// ProgressFunc receives human-readable progress lines during selection.
// Messages carry no control meaning; callers may drop them.
type ProgressFunc func(msg string)

// Retriever wires the filter, scorer, re-ranker, and selector over a file
// store. Embedder and RuleProvider are optional.
type Retriever struct {
	store    FileStore
	embedder Embedder
	rules    RuleProvider
}

func NewRetriever(store FileStore, embedder Embedder, rules RuleProvider) *Retriever {
	return &Retriever{store: store, embedder: embedder, rules: rules}
}

// SelectFiles resolves the repository's default branch when ref is empty,
// then runs the full pipeline for question. Repository or branch resolution
// failures are terminal; a resolvable repository with nothing to supply
// yields an empty result, which downstream treats as "cannot answer".
func (r *Retriever) SelectFiles(ctx context.Context, owner, repo, ref, question string, limits Limits, progress ProgressFunc) (RetrievalResult, error) {
	if progress == nil {
		progress = func(string) {}
	}

	if ref == "" {
		branch, err := r.store.DefaultBranch(ctx, owner, repo)
		if err != nil {
			return RetrievalResult{}, fmt.Errorf("resolve default branch: %w", err)
		}
		ref = branch
	}
	progress(fmt.Sprintf("listing tree of %s/%s@%s", owner, repo, ref))

	entries, err := r.store.ListTree(ctx, owner, repo, ref)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("list tree: %w", err)
	}

	var rules Rules
	if r.rules != nil {
		rules, _ = r.rules.Rules(RepoKey(owner, repo))
	}
	cands := FilterCandidates(entries, rules)
	progress(fmt.Sprintf("%d candidates after filtering %d entries", len(cands), len(entries)))
	if len(cands) == 0 {
		return RetrievalResult{}, nil
	}

	fetch := func(ctx context.Context, path string) ([]byte, error) {
		return r.store.FileContent(ctx, owner, repo, path, ref)
	}

	keywords := ExtractKeywords(question)
	scored := scoreCandidates(ctx, fetchWindow(cands, keywords, limits.withDefaults().MaxFiles), keywords, fetch)
	progress(fmt.Sprintf("scored %d files for %d keywords", len(scored), len(keywords)))

	ranked := rerank(ctx, r.embedder, question, scored)

	res := selectBudgeted(ctx, ranked, limits, fetch)
	progress(fmt.Sprintf("selected %d files, %d bytes", len(res.Files), res.TotalBytes))
	return res, nil
}
