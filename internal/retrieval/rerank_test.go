package retrieval

import (
	"context"
	"errors"
	"testing"
)

type fakeEmbedder struct {
	vecs [][]float32
	err  error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.vecs) != len(texts) {
		return nil, errors.New("vector count mismatch")
	}
	return f.vecs, nil
}

func scoredPair() []ScoredFile {
	return []ScoredFile{
		{Path: "match.go", Content: "alpha", Lexical: 30, Final: 30, Depth: 1},
		{Path: "other.go", Content: "beta", Lexical: 10, Final: 10, Depth: 1},
	}
}

func TestRerankBlendsCosine(t *testing.T) {
	// Question aligns with other.go's vector, which must overcome the
	// lexical gap under the 5:1 semantic weighting.
	emb := &fakeEmbedder{vecs: [][]float32{
		{0, 1}, // question
		{1, 0}, // match.go: cosine 0
		{0, 1}, // other.go: cosine 1
	}}
	got := rerank(context.Background(), emb, "question", scoredPair())
	if got[0].Path != "other.go" {
		t.Fatalf("top file = %q, want other.go", got[0].Path)
	}
	if got[0].Final != 10*lexicalBlendWeight+1*cosineBlendWeight {
		t.Fatalf("final = %v", got[0].Final)
	}
	if got[1].Final != 30*lexicalBlendWeight {
		t.Fatalf("final = %v", got[1].Final)
	}
}

func TestRerankFallsBackOnError(t *testing.T) {
	orig := scoredPair()
	got := rerank(context.Background(), &fakeEmbedder{err: errors.New("quota")}, "question", orig)
	for i := range orig {
		if got[i].Path != orig[i].Path || got[i].Final != orig[i].Lexical {
			t.Fatalf("order changed on embedding failure: %+v", got)
		}
	}
}

func TestRerankFallsBackOnBadVectors(t *testing.T) {
	emb := &fakeEmbedder{vecs: [][]float32{{0, 1}, {1, 0}, {0, 0}}}
	got := rerank(context.Background(), emb, "question", scoredPair())
	if got[0].Path != "match.go" || got[0].Final != 30 {
		t.Fatalf("zero-magnitude vector should leave lexical order: %+v", got)
	}
}

func TestRerankSkippedWithoutEmbedderOrQuestion(t *testing.T) {
	in := scoredPair()
	if got := rerank(context.Background(), nil, "question", in); got[0].Path != "match.go" {
		t.Fatalf("nil embedder changed order")
	}
	emb := &fakeEmbedder{vecs: [][]float32{{1}, {1}, {1}}}
	if got := rerank(context.Background(), emb, "   ", in); got[0].Final != 30 {
		t.Fatalf("blank question should skip re-ranking")
	}
}
