// Package analyze orchestrates one question-answering request: retrieval,
// prompt assembly, the model call, and answer grounding.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"repostack/internal/jsonutil"
	"repostack/internal/llm"
	"repostack/internal/llmclient"
	"repostack/internal/retrieval"
	"repostack/internal/validate"
)

// ErrUnparseable signals that the provider responded but nothing resembling
// a JSON object could be recovered from the text.
var ErrUnparseable = errors.New("unparseable model response")

// Request is one analysis job. Ref may be empty to use the default branch.
type Request struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Ref      string `json:"ref,omitempty"`
	Question string `json:"question"`

	MaxFiles int `json:"maxFiles,omitempty"`
	MaxBytes int `json:"maxBytes,omitempty"`
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Owner) == "" || strings.TrimSpace(r.Repo) == "" {
		return errors.New("owner and repo are required")
	}
	if strings.TrimSpace(r.Question) == "" {
		return errors.New("question is required")
	}
	return nil
}

// Result pairs the validated answer with what was actually supplied to the
// model, so callers can render or persist the evidence set.
type Result struct {
	Answer     validate.ModelAnswer     `json:"answer"`
	Supplied   []retrieval.SuppliedFile `json:"supplied"`
	TotalBytes int                      `json:"totalBytes"`
	Provider   string                   `json:"provider"`
}

// Service wires the retriever to a model client.
type Service struct {
	retriever *retrieval.Retriever
	client    llmclient.LLMClient
	logger    *log.Logger
}

func New(retriever *retrieval.Retriever, client llmclient.LLMClient, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{retriever: retriever, client: client, logger: logger}
}

// Analyze runs the full pipeline for one request. A repository that yields
// zero files is not an error: the canonical cannot-answer result is
// returned without calling the model.
func (s *Service) Analyze(ctx context.Context, req Request, progress retrieval.ProgressFunc) (Result, error) {
	if progress == nil {
		progress = func(string) {}
	}
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	limits := retrieval.Limits{MaxFiles: req.MaxFiles, MaxBytes: req.MaxBytes}
	res, err := s.retriever.SelectFiles(ctx, req.Owner, req.Repo, req.Ref, req.Question, limits, progress)
	if err != nil {
		return Result{}, err
	}
	if len(res.Files) == 0 {
		progress("no files retrieved; answering without the model")
		return s.result(validate.EmptyRetrievalAnswer(), res), nil
	}

	// The trimmed set is what the model actually sees; validation and the
	// reported evidence set must use the same set, or back-filled citations
	// could name files the model never received.
	res = s.fitToCapacity(res)
	input := promptInput{Question: req.Question, Files: res.Files}
	progress(fmt.Sprintf("asking %s about %d files", s.client.Name(), len(input.Files)))

	ctx = llm.WithPhase(ctx, "analyze")
	ctx = llm.WithPromptHook(ctx, progressHook{progress: progress})
	raw, err := s.client.GenerateJSON(ctx, answerPrompt, input)
	if err != nil {
		return Result{}, fmt.Errorf("model provider: %w", err)
	}

	obj, err := jsonutil.ExtractObject(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	ans, err := validate.Parse(obj)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	final := validate.Finalize(ans, res)
	progress("answer validated")
	return s.result(final, res), nil
}

// progressHook surfaces the model round-trip on the progress channel via
// the hooks middleware.
type progressHook struct {
	progress retrieval.ProgressFunc
}

func (h progressHook) Before(_ context.Context, phase, _ string, _ any) {
	h.progress(fmt.Sprintf("model call started (%s)", phase))
}

func (h progressHook) After(_ context.Context, phase string, _ json.RawMessage, err error) {
	if err != nil {
		h.progress(fmt.Sprintf("model call failed (%s): %v", phase, err))
		return
	}
	h.progress(fmt.Sprintf("model call finished (%s)", phase))
}

func (s *Service) result(ans validate.ModelAnswer, res retrieval.RetrievalResult) Result {
	return Result{
		Answer:     ans,
		Supplied:   res.Files,
		TotalBytes: res.TotalBytes,
		Provider:   s.client.Name(),
	}
}

// fitToCapacity drops trailing files (ranking order is authoritative) until
// the assembled input fits the client's token capacity. At least one file
// is always kept. The returned result is the authoritative supplied set.
func (s *Service) fitToCapacity(res retrieval.RetrievalResult) retrieval.RetrievalResult {
	capacity := s.client.TokenCapacity()
	if capacity <= 0 {
		return res
	}
	used := s.client.CountTokens(answerPrompt)
	trimmed := retrieval.RetrievalResult{Files: make([]retrieval.SuppliedFile, 0, len(res.Files))}
	for _, f := range res.Files {
		used += s.client.CountTokens(f.Path) + s.client.CountTokens(f.Content)
		if used > capacity && len(trimmed.Files) > 0 {
			s.logger.Printf("analyze: dropping %s and %d lower-ranked files over token capacity",
				f.Path, len(res.Files)-len(trimmed.Files)-1)
			break
		}
		trimmed.Files = append(trimmed.Files, f)
		trimmed.TotalBytes += len(f.Content)
	}
	return trimmed
}
