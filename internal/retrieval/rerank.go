package retrieval

import (
	"context"
	"math"
	"strings"
)

// ----------------------------------------------------------------------------
// Semantic re-ranker
// ----------------------------------------------------------------------------

const (
	// embedPrefixChars bounds the content prefix sent per file so one
	// batched embedding request stays cheap regardless of file sizes.
	embedPrefixChars = 1_500

	// lexicalBlendWeight keeps the coarse lexical pre-filter as a minor
	// signal; cosine similarity scaled by 100 carries the ranking.
	lexicalBlendWeight = 0.2
	cosineBlendWeight  = 100
)

// rerank blends cosine similarity against the question into each file's
// final score and re-sorts. Any embedding failure leaves the lexical order
// untouched; semantic ranking is an enhancement, never a dependency.
func rerank(ctx context.Context, emb Embedder, question string, files []ScoredFile) []ScoredFile {
	if emb == nil || strings.TrimSpace(question) == "" || len(files) == 0 {
		return files
	}

	texts := make([]string, 0, len(files)+1)
	texts = append(texts, question)
	for _, f := range files {
		texts = append(texts, prefix(f.Content, embedPrefixChars))
	}

	vecs, err := emb.Embed(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		return files
	}

	q := vecs[0]
	out := make([]ScoredFile, len(files))
	for i, f := range files {
		cos, ok := cosine(q, vecs[i+1])
		if !ok {
			return files
		}
		f.Semantic = cos
		f.Final = f.Lexical*lexicalBlendWeight + cos*cosineBlendWeight
		out[i] = f
	}
	sortByFinal(out)
	return out
}

func prefix(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// cosine returns the cosine similarity of two vectors, or ok=false when the
// provider returned mismatched or zero-magnitude vectors.
func cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
