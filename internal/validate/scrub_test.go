package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrubDropsParagraphsWithUngroundedPaths(t *testing.T) {
	res := suppliedFiles("auth/login.go")
	a := ModelAnswer{
		Answer: "Login is handled in auth/login.go using sessions.\n\n" +
			"Token refresh lives in auth/refresh.go and rotates keys.",
		Sources: []string{"auth/login.go"},
	}
	got := Finalize(a, res)
	assert.Equal(t, "Login is handled in auth/login.go using sessions.", got.Answer)
	assert.Equal(t, []string{"auth/refresh"}, got.Missing)
	assert.NotEmpty(t, got.Reason)
	assert.False(t, got.CannotAnswer)
}

func TestScrubFullyScrubbedAnswerStaysAnswerable(t *testing.T) {
	res := suppliedFiles("main.go")
	a := ModelAnswer{
		Answer:  "Everything is in config/settings.py and tasks/queue.py.",
		Sources: []string{"main.go"},
	}
	got := Finalize(a, res)
	assert.Equal(t, scrubbedAnswer, got.Answer)
	assert.False(t, got.CannotAnswer)
	assert.ElementsMatch(t, []string{"config/settings", "tasks/queue"}, got.Missing)
}

func TestScrubParagraphThatIsItselfAGroundedPath(t *testing.T) {
	res := suppliedFiles("cmd/api/main.go")
	a := ModelAnswer{
		Answer:  "cmd/api/main.go",
		Sources: []string{"cmd/api/main.go"},
	}
	got := Finalize(a, res)
	assert.Equal(t, "cmd/api/main.go", got.Answer)
	assert.Empty(t, got.Missing)
}

func TestScrubIdempotence(t *testing.T) {
	res := suppliedFiles("a.go")
	a := ModelAnswer{
		Answer: "Grounded part mentions a.go.\n\n" +
			"Fabricated part mentions b.go and c/d.ts.",
		Sources: []string{"a.go"},
	}
	once := Finalize(a, res)
	twice := Finalize(once, res)
	assert.Equal(t, once.Answer, twice.Answer)
	assert.Equal(t, once.Missing, twice.Missing)
	assert.Equal(t, once.CannotAnswer, twice.CannotAnswer)
}

func TestScrubDeduplicatesMissing(t *testing.T) {
	res := suppliedFiles("a.go")
	a := ModelAnswer{
		Answer: "See util/helpers.js here.\n\n" +
			"And util/helpers.js again over there.",
		Sources: []string{"a.go"},
		Missing: []string{"util/helpers"},
	}
	got := Finalize(a, res)
	assert.Equal(t, []string{"util/helpers"}, got.Missing)
}

func TestScrubLeavesCleanAnswerAlone(t *testing.T) {
	res := suppliedFiles("a.go")
	a := ModelAnswer{
		Answer:  "The handler in a.go registers routes at startup.",
		Sources: []string{"a.go"},
		Reason:  "",
	}
	got := Finalize(a, res)
	assert.Equal(t, a.Answer, got.Answer)
	assert.Empty(t, got.Missing)
}

func TestUngroundedTokenDetection(t *testing.T) {
	res := suppliedFiles("pkg/server.go")
	toks := ungroundedTokens("pkg/server.go plus fake/thing.rs and no-ext word", &res)
	require.Len(t, toks, 1)
	assert.Equal(t, "fake/thing.rs", toks[0])
}
