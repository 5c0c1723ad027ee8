package validate

import (
	"regexp"
	"strings"

	"repostack/internal/retrieval"
)

// ----------------------------------------------------------------------------
// Prose hallucination scrub
// ----------------------------------------------------------------------------

// pathToken matches path-like tokens ending in a recognized source
// extension. Built from the same extension set the candidate filter uses.
var pathToken = buildPathTokenRegexp()

func buildPathTokenRegexp() *regexp.Regexp {
	exts := make([]string, 0, len(retrieval.SourceExtensions))
	for _, e := range retrieval.SourceExtensions {
		exts = append(exts, regexp.QuoteMeta(strings.TrimPrefix(e, ".")))
	}
	return regexp.MustCompile(`[A-Za-z0-9_][A-Za-z0-9_./-]*\.(?:` + strings.Join(exts, "|") + `)\b`)
}

// scrubProse removes paragraphs of the answer that mention file paths
// outside the grounded set, recording each removed token as a named gap.
// The matching is deliberately coarse: a paragraph that merely mentions a
// token resembling an ungrounded filename is dropped whole. Running the
// scrub on an already-scrubbed answer changes nothing.
func scrubProse(a ModelAnswer, res *retrieval.RetrievalResult) ModelAnswer {
	ungrounded := ungroundedTokens(a.Answer, res)
	if len(ungrounded) == 0 {
		return a
	}

	paragraphs := splitParagraphs(a.Answer)
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		// An answer that is literally just a grounded path survives even
		// though the path text pattern-matches a token.
		if res.Has(strings.TrimSpace(p)) {
			kept = append(kept, p)
			continue
		}
		if mentionsAny(p, ungrounded) {
			continue
		}
		kept = append(kept, p)
	}

	a.Answer = strings.TrimSpace(strings.Join(kept, "\n\n"))
	if a.Answer == "" {
		// A fully scrubbed answer is still a grounded answer, not an
		// unanswerable one.
		a.Answer = scrubbedAnswer
	}
	a.CannotAnswer = false

	for _, tok := range ungrounded {
		a.Missing = appendUnique(a.Missing, stripExtension(tok))
	}
	if strings.TrimSpace(a.Reason) == "" {
		a.Reason = reasonScrubbed
	}
	return a
}

// ungroundedTokens returns the path-like tokens in text that are not exact
// members of the grounded path set, in first-mention order.
func ungroundedTokens(text string, res *retrieval.RetrievalResult) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range pathToken.FindAllString(text, -1) {
		if res.Has(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

var blankLine = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range blankLine.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func mentionsAny(paragraph string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(paragraph, tok) {
			return true
		}
	}
	return false
}

func stripExtension(token string) string {
	if i := strings.LastIndex(token, "."); i > 0 {
		return token[:i]
	}
	return token
}

func appendUnique(list []string, v string) []string {
	for _, have := range list {
		if have == v {
			return list
		}
	}
	return append(list, v)
}
