package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"repostack/internal/llm"
	"repostack/internal/retrieval"
)

type fakeStore struct {
	tree  []retrieval.TreeEntry
	files map[string]string
}

func (f *fakeStore) DefaultBranch(context.Context, string, string) (string, error) {
	return "main", nil
}

func (f *fakeStore) ListTree(context.Context, string, string, string) ([]retrieval.TreeEntry, error) {
	return f.tree, nil
}

func (f *fakeStore) FileContent(_ context.Context, _, _, path, _ string) ([]byte, error) {
	c, ok := f.files[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(c), nil
}

type fakeClient struct {
	response string
	err      error
	capacity int
	calls    int
	lastIn   string
}

func (f *fakeClient) Name() string                { return "fake" }
func (f *fakeClient) Close() error                { return nil }
func (f *fakeClient) CountTokens(text string) int { return len(text) / 4 }

func (f *fakeClient) TokenCapacity() int {
	if f.capacity > 0 {
		return f.capacity
	}
	return 100_000
}

func (f *fakeClient) GenerateJSON(_ context.Context, _ string, input any) (json.RawMessage, error) {
	f.calls++
	b, _ := json.Marshal(input)
	f.lastIn = string(b)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

func newService(store *fakeStore, client *fakeClient) *Service {
	return New(retrieval.NewRetriever(store, nil, nil), client, nil)
}

func oneFileStore() *fakeStore {
	return &fakeStore{
		tree:  []retrieval.TreeEntry{{Path: "main.go", Kind: "blob"}},
		files: map[string]string{"main.go": "package main"},
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	client := &fakeClient{response: `{
		"answer": "The program starts in main.go.",
		"references": [{"path": "main.go", "excerpt": "package main"}],
		"sources": ["main.go"],
		"cannot_answer": false
	}`}
	svc := newService(oneFileStore(), client)

	got, err := svc.Analyze(context.Background(), Request{
		Owner: "acme", Repo: "app", Question: "Where does the program start?",
	}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Answer.CannotAnswer {
		t.Fatalf("unexpected cannot_answer: %+v", got.Answer)
	}
	if len(got.Answer.Sources) != 1 || got.Answer.Sources[0] != "main.go" {
		t.Fatalf("sources = %v", got.Answer.Sources)
	}
	if !strings.Contains(client.lastIn, `"main.go"`) {
		t.Fatalf("file not supplied to model: %s", client.lastIn)
	}
}

func TestAnalyzeEmptyRetrievalSkipsModel(t *testing.T) {
	client := &fakeClient{response: `{}`}
	svc := newService(&fakeStore{}, client)

	got, err := svc.Analyze(context.Background(), Request{
		Owner: "acme", Repo: "empty", Question: "anything?",
	}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("model called %d times for empty retrieval", client.calls)
	}
	if !got.Answer.CannotAnswer || got.Answer.Reason == "" {
		t.Fatalf("answer = %+v", got.Answer)
	}
}

func TestAnalyzeRecoversJSONFromChatter(t *testing.T) {
	client := &fakeClient{response: "Sure! Here is the JSON:\n" +
		`{"answer": "ok", "sources": ["main.go"]}` + "\nHope that helps."}
	svc := newService(oneFileStore(), client)

	got, err := svc.Analyze(context.Background(), Request{
		Owner: "acme", Repo: "app", Question: "does it work?",
	}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Answer.Answer != "ok" {
		t.Fatalf("answer = %+v", got.Answer)
	}
}

func TestAnalyzeUnparseableResponse(t *testing.T) {
	client := &fakeClient{response: "I refuse to emit JSON today."}
	svc := newService(oneFileStore(), client)

	_, err := svc.Analyze(context.Background(), Request{
		Owner: "acme", Repo: "app", Question: "q?",
	}, nil)
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("err = %v, want ErrUnparseable", err)
	}
}

func TestAnalyzeProviderErrorSurfaces(t *testing.T) {
	client := &fakeClient{err: errors.New("quota exceeded")}
	svc := newService(oneFileStore(), client)

	_, err := svc.Analyze(context.Background(), Request{
		Owner: "acme", Repo: "app", Question: "q?",
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "model provider") {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyzeRejectsBadRequest(t *testing.T) {
	svc := newService(oneFileStore(), &fakeClient{response: `{}`})
	if _, err := svc.Analyze(context.Background(), Request{Owner: "acme"}, nil); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestAnalyzeEmitsModelCallProgress(t *testing.T) {
	inner := &fakeClient{response: `{"answer": "ok", "sources": ["main.go"]}`}
	client := llm.Wrap(inner, llm.WithHooks())
	svc := New(retrieval.NewRetriever(oneFileStore(), nil, nil), client, nil)

	var msgs []string
	_, err := svc.Analyze(context.Background(), Request{
		Owner: "acme", Repo: "app", Question: "does it work?",
	}, func(m string) { msgs = append(msgs, m) })
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	joined := strings.Join(msgs, "\n")
	if !strings.Contains(joined, "model call started (analyze)") ||
		!strings.Contains(joined, "model call finished (analyze)") {
		t.Fatalf("model round-trip not surfaced in progress:\n%s", joined)
	}
}

func TestFitToCapacityDropsTrailingFiles(t *testing.T) {
	client := &fakeClient{}
	svc := New(nil, client, nil)
	res := retrieval.RetrievalResult{Files: []retrieval.SuppliedFile{
		{Path: "a.go", Content: strings.Repeat("x", 200_000)},
		{Path: "b.go", Content: strings.Repeat("y", 200_000)},
		{Path: "c.go", Content: "small"},
	}, TotalBytes: 400_005}
	trimmed := svc.fitToCapacity(res)
	if len(trimmed.Files) != 1 || trimmed.Files[0].Path != "a.go" {
		t.Fatalf("trimmed = %+v", trimmed.Files)
	}
	if trimmed.TotalBytes != 200_000 {
		t.Fatalf("TotalBytes = %d, want bytes of kept files only", trimmed.TotalBytes)
	}
}

func TestAnalyzeCitesOnlyFilesSentToModel(t *testing.T) {
	// Capacity forces trimming to one file; the model cites nothing, so the
	// sources back-fill runs. Every back-filled citation and the reported
	// supplied set must stay within what the model actually received.
	store := &fakeStore{
		tree: []retrieval.TreeEntry{
			{Path: "a.go", Kind: "blob"},
			{Path: "b.go", Kind: "blob"},
			{Path: "c.go", Kind: "blob"},
		},
		files: map[string]string{
			"a.go": strings.Repeat("alpha ", 20),
			"b.go": strings.Repeat("beta ", 20),
			"c.go": strings.Repeat("gamma ", 20),
		},
	}
	client := &fakeClient{capacity: 120, response: `{"answer": "the code is small"}`}
	svc := newService(store, client)

	got, err := svc.Analyze(context.Background(), Request{
		Owner: "acme", Repo: "app", Question: "what is here?",
	}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var sent promptInput
	if err := json.Unmarshal([]byte(client.lastIn), &sent); err != nil {
		t.Fatalf("decode model input: %v", err)
	}
	if len(sent.Files) == 0 || len(sent.Files) == 3 {
		t.Fatalf("expected trimming, model got %d files", len(sent.Files))
	}
	sentPaths := make(map[string]bool, len(sent.Files))
	for _, f := range sent.Files {
		sentPaths[f.Path] = true
	}

	for _, s := range got.Answer.Sources {
		if !sentPaths[s] {
			t.Fatalf("source %q was never sent to the model", s)
		}
	}
	for _, r := range got.Answer.References {
		if !sentPaths[r.Path] {
			t.Fatalf("reference %q was never sent to the model", r.Path)
		}
	}
	if len(got.Supplied) != len(sent.Files) {
		t.Fatalf("Supplied reports %d files, model got %d", len(got.Supplied), len(sent.Files))
	}
}
