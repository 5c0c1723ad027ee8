// Package rules holds per-repository allow/deny path-substring overrides,
// keyed "owner/repo". The store is injected into the pipeline rather than
// held as a module global so tests run in isolation. Persistence is optional:
// without a DSN the store is purely in-memory and rules live only for the
// process lifetime.
package rules

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"repostack/internal/retrieval"
)

type Store struct {
	mu    sync.RWMutex
	byKey map[string]retrieval.Rules

	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func New() *Store {
	return &Store{byKey: make(map[string]retrieval.Rules)}
}

// NewPostgres opens a Postgres-backed store via the pgx stdlib driver.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{byKey: make(map[string]retrieval.Rules), db: db}, nil
}

// NewFromEnv returns a Postgres store when RULES_PG_DSN is set, otherwise an
// in-memory one. A broken DSN degrades to in-memory with a warning on stderr.
func NewFromEnv() *Store {
	dsn := strings.TrimSpace(os.Getenv("RULES_PG_DSN"))
	if dsn == "" {
		return New()
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rules: postgres unavailable (%v); using in-memory store\n", err)
		return New()
	}
	return s
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Rules implements retrieval.RuleProvider.
func (s *Store) Rules(repoKey string) (retrieval.Rules, bool) {
	s.mu.RLock()
	r, ok := s.byKey[repoKey]
	s.mu.RUnlock()
	if ok || s.db == nil {
		return r, ok
	}

	r, ok = s.loadRow(repoKey)
	if ok {
		s.mu.Lock()
		s.byKey[repoKey] = r
		s.mu.Unlock()
	}
	return r, ok
}

// Set replaces the rule set for a repository.
func (s *Store) Set(repoKey string, r retrieval.Rules) error {
	r.Allow = cleanList(r.Allow)
	r.Deny = cleanList(r.Deny)

	s.mu.Lock()
	s.byKey[repoKey] = r
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	allow, _ := json.Marshal(r.Allow)
	deny, _ := json.Marshal(r.Deny)
	_, err := s.db.Exec(`
		INSERT INTO repo_rules (repo_key, allow, deny)
		VALUES ($1, $2, $3)
		ON CONFLICT (repo_key) DO UPDATE SET allow = $2, deny = $3`,
		repoKey, allow, deny)
	return err
}

// Delete removes the rule set for a repository.
func (s *Store) Delete(repoKey string) error {
	s.mu.Lock()
	delete(s.byKey, repoKey)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM repo_rules WHERE repo_key = $1`, repoKey)
	return err
}

func (s *Store) loadRow(repoKey string) (retrieval.Rules, bool) {
	if err := s.ensureSchema(); err != nil {
		return retrieval.Rules{}, false
	}
	var allow, deny []byte
	err := s.db.QueryRow(
		`SELECT allow, deny FROM repo_rules WHERE repo_key = $1`, repoKey,
	).Scan(&allow, &deny)
	if err != nil {
		return retrieval.Rules{}, false
	}
	var r retrieval.Rules
	_ = json.Unmarshal(allow, &r.Allow)
	_ = json.Unmarshal(deny, &r.Deny)
	return r, true
}

func (s *Store) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
			CREATE TABLE IF NOT EXISTS repo_rules (
				repo_key TEXT PRIMARY KEY,
				allow    JSONB NOT NULL DEFAULT '[]',
				deny     JSONB NOT NULL DEFAULT '[]'
			)`)
	})
	return s.schemaErr
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
