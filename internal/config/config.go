// Package config loads server settings from flags and the environment,
// with an optional .env file for local development.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	GitHubToken string
	GitHubAPI   string

	LLM      LLMConfig
	Limits   LimitsConfig
	Artifact ArtifactConfig
}

type LLMConfig struct {
	// Provider selects the completion backend: "gemini" or "groq".
	Provider   string
	Model      string
	EmbedModel string
	RPS        int
	Burst      int
}

type LimitsConfig struct {
	MaxFiles int
	MaxBytes int
	// RequestRPS throttles inbound analysis requests; 0 disables.
	RequestRPS   int
	RequestBurst int
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:        *port,
		Env:         env,
		GitHubToken: strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		GitHubAPI:   strings.TrimSpace(os.Getenv("GITHUB_API_URL")),
		LLM: LLMConfig{
			Provider:   firstNonEmpty(strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER"))), "gemini"),
			Model:      strings.TrimSpace(os.Getenv("LLM_MODEL")),
			EmbedModel: strings.TrimSpace(os.Getenv("LLM_EMBED_MODEL")),
			RPS:        envInt("LLM_RPS", 2),
			Burst:      envInt("LLM_BURST", 2),
		},
		Limits: LimitsConfig{
			MaxFiles:     envInt("MAX_FILES", 0),
			MaxBytes:     envInt("MAX_BYTES", 0),
			RequestRPS:   envInt("REQUEST_RPS", 5),
			RequestBurst: envInt("REQUEST_BURST", 10),
		},
		Artifact: loadArtifactConfig(env),
	}, nil
}

func loadArtifactConfig(env string) ArtifactConfig {
	endpoint := resolveArtifactEndpoint(env)
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "repostack-transcripts"),
		UseSSL:    resolveArtifactUseSSL(env),
	}
}

func resolveArtifactEndpoint(env string) string {
	if strings.EqualFold(env, "local") {
		return strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveArtifactUseSSL(env string) bool {
	if strings.EqualFold(env, "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
