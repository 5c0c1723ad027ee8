package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"repostack/internal/analyze"
)

// handleAnalyzeSSE streams progress events while an analysis runs, then the
// final result. Parameters come from the query string so EventSource can be
// used directly from a browser.
func (s *server) handleAnalyzeSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.allow() {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	q := r.URL.Query()
	req := analyze.Request{
		Owner:    strings.TrimSpace(q.Get("owner")),
		Repo:     strings.TrimSpace(q.Get("repo")),
		Ref:      strings.TrimSpace(q.Get("ref")),
		Question: strings.TrimSpace(q.Get("question")),
	}
	if v, err := strconv.Atoi(q.Get("maxFiles")); err == nil {
		req.MaxFiles = v
	}
	if v, err := strconv.Atoi(q.Get("maxBytes")); err == nil {
		req.MaxBytes = v
	}
	s.applyDefaultLimits(&req)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	emit := func(event string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	res, err := s.svc.Analyze(r.Context(), req, func(msg string) {
		emit("progress", map[string]string{"message": msg})
	})
	if err != nil {
		emit("error", map[string]string{"message": err.Error()})
		return
	}

	s.snapshot(req, res)
	emit("result", res)
	fmt.Fprintf(w, "event: close\ndata: {}\n\n")
	flusher.Flush()
}
