package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"repostack/internal/analyze"
	"repostack/internal/artifact"
	"repostack/internal/config"
	"repostack/internal/githubstore"
	"repostack/internal/llm"
	"repostack/internal/llmclient"
	"repostack/internal/retrieval"
	"repostack/internal/rules"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags)

	client, embedder, err := buildClient(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("init model client: %v", err)
	}
	defer client.Close()

	var storeOpts []githubstore.Option
	if cfg.GitHubToken != "" {
		storeOpts = append(storeOpts, githubstore.WithToken(cfg.GitHubToken))
	}
	if cfg.GitHubAPI != "" {
		storeOpts = append(storeOpts, githubstore.WithBaseURL(cfg.GitHubAPI))
	}
	files := githubstore.New(storeOpts...)

	ruleStore := rules.NewFromEnv()
	defer ruleStore.Close()

	retriever := retrieval.NewRetriever(files, embedder, ruleStore)
	svc := analyze.New(retriever, client, logger)

	var transcripts *artifact.Store
	if cfg.Artifact.Enabled {
		transcripts, err = artifact.NewStore(artifact.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
		if err != nil {
			logger.Printf("transcript store disabled: %v", err)
			transcripts = nil
		}
	}

	var reqLimiter llm.Limiter
	if cfg.Limits.RequestRPS > 0 {
		reqLimiter = llm.NewLimiter(float64(cfg.Limits.RequestRPS), cfg.Limits.RequestBurst)
	}

	srv := &server{
		svc:         svc,
		rules:       ruleStore,
		transcripts: transcripts,
		limiter:     reqLimiter,
		limits: retrieval.Limits{
			MaxFiles: cfg.Limits.MaxFiles,
			MaxBytes: cfg.Limits.MaxBytes,
		},
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/api/analyze", srv.handleAnalyze)
	mux.HandleFunc("/api/analyze/stream", srv.handleAnalyzeSSE)
	mux.HandleFunc("/api/analyze/ws", srv.handleAnalyzeWS)
	mux.HandleFunc("/api/rules/", srv.handleRules)
	mux.HandleFunc("/api/transcripts/", srv.handleTranscripts)

	h := withCORS(mux)
	logger.Printf("starting API server on %s (provider=%s)", cfg.Port, client.Name())
	log.Fatal(http.ListenAndServe(cfg.Port, h2c.NewHandler(h, &http2.Server{})))
}

func buildClient(ctx context.Context, cfg *config.Config, logger *log.Logger) (llmclient.LLMClient, retrieval.Embedder, error) {
	var (
		inner    llmclient.LLMClient
		embedder retrieval.Embedder
	)
	switch cfg.LLM.Provider {
	case "gemini":
		g, err := llmclient.NewGeminiClient(ctx, llmclient.GeminiConfig{
			Model:      cfg.LLM.Model,
			EmbedModel: cfg.LLM.EmbedModel,
		})
		if err != nil {
			return nil, nil, err
		}
		inner = g
		embedder = g
	case "groq":
		g, err := llmclient.NewGroqClient("", cfg.LLM.Model, 0)
		if err != nil {
			return nil, nil, err
		}
		inner = g
	default:
		return nil, nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}

	wrapped := llm.Wrap(inner,
		llm.WithLogging(logger),
		llm.WithHooks(),
		llm.Retry(3, 0),
		llm.RateLimit(float64(cfg.LLM.RPS), cfg.LLM.Burst),
	)
	return wrapped, embedder, nil
}

// Simple CORS middleware
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
