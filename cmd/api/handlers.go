package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"repostack/internal/analyze"
	"repostack/internal/artifact"
	"repostack/internal/githubstore"
	"repostack/internal/llm"
	"repostack/internal/retrieval"
	"repostack/internal/rules"
)

type server struct {
	svc         *analyze.Service
	rules       *rules.Store
	transcripts *artifact.Store
	limiter     llm.Limiter
	limits      retrieval.Limits
	logger      *log.Logger
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleAnalyze runs one analysis synchronously and returns the validated
// result as JSON.
func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.allow() {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	var req analyze.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	s.applyDefaultLimits(&req)

	res, err := s.svc.Analyze(r.Context(), req, func(msg string) {
		s.logger.Printf("analyze %s/%s: %s", req.Owner, req.Repo, msg)
	})
	if err != nil {
		writeAnalyzeError(w, err)
		return
	}

	s.snapshot(req, res)
	writeJSON(w, http.StatusOK, res)
}

// handleRules serves GET and PUT for /api/rules/{owner}/{repo}.
func (s *server) handleRules(w http.ResponseWriter, r *http.Request) {
	owner, repo, ok := splitRepoPath(r.URL.Path, "/api/rules/")
	if !ok {
		http.Error(w, "expected /api/rules/{owner}/{repo}", http.StatusBadRequest)
		return
	}
	key := retrieval.RepoKey(owner, repo)

	switch r.Method {
	case http.MethodGet:
		rs, found := s.rules.Rules(key)
		if !found {
			rs = retrieval.Rules{}
		}
		if rs.Allow == nil {
			rs.Allow = []string{}
		}
		if rs.Deny == nil {
			rs.Deny = []string{}
		}
		writeJSON(w, http.StatusOK, rs)
	case http.MethodPut:
		var rs retrieval.Rules
		if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if err := s.rules.Set(key, rs); err != nil {
			http.Error(w, "persist rules: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case http.MethodDelete:
		if err := s.rules.Delete(key); err != nil {
			http.Error(w, "delete rules: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleTranscripts serves GET /api/transcripts/{owner}/{repo} (list) and
// GET /api/transcripts/{owner}/{repo}/{id} (fetch one).
func (s *server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.transcripts == nil {
		http.Error(w, "transcript store not configured", http.StatusNotFound)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/transcripts/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch len(parts) {
	case 2:
		key := retrieval.RepoKey(parts[0], parts[1])
		ids, err := s.transcripts.List(r.Context(), key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"repo": key, "transcripts": ids})
	case 3:
		key := retrieval.RepoKey(parts[0], parts[1])
		data, err := s.transcripts.Transcript(r.Context(), key, parts[2])
		if errors.Is(err, artifact.ErrNotFound) {
			http.Error(w, "transcript not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	default:
		http.Error(w, "expected /api/transcripts/{owner}/{repo}[/{id}]", http.StatusBadRequest)
	}
}

func (s *server) allow() bool {
	return s.limiter == nil || s.limiter.TryAcquire()
}

func (s *server) applyDefaultLimits(req *analyze.Request) {
	if req.MaxFiles <= 0 {
		req.MaxFiles = s.limits.MaxFiles
	}
	if req.MaxBytes <= 0 {
		req.MaxBytes = s.limits.MaxBytes
	}
}

// snapshot persists the transcript when a store is configured. Failures are
// logged and otherwise ignored.
func (s *server) snapshot(req analyze.Request, res analyze.Result) {
	if s.transcripts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	key := retrieval.RepoKey(req.Owner, req.Repo)
	id, err := s.transcripts.SaveTranscript(ctx, key, map[string]any{
		"request": req,
		"result":  res,
	})
	if err != nil {
		s.logger.Printf("snapshot %s failed: %v", key, err)
		return
	}
	s.logger.Printf("snapshot %s saved as %s", key, id)
}

func writeAnalyzeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, githubstore.ErrNotFound):
		http.Error(w, "repository, branch or path not found", http.StatusNotFound)
	case errors.Is(err, githubstore.ErrRateLimited):
		http.Error(w, "upstream rate limit exhausted; supply a GITHUB_TOKEN with higher quota", http.StatusServiceUnavailable)
	case errors.Is(err, analyze.ErrUnparseable):
		http.Error(w, "model returned an unparseable response", http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func splitRepoPath(path, prefix string) (owner, repo string, ok bool) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
