// Package validate post-processes a model's structured answer against the
// exact file set that was supplied to it. Every cited path that survives
// validation is guaranteed to be one of the supplied paths; fabricated file
// mentions in prose are scrubbed and surfaced as named gaps.
package validate

import (
	"encoding/json"
	"strings"

	"repostack/internal/retrieval"
)

// Reference is one inspectable citation in a validated answer.
type Reference struct {
	Path    string `json:"path"`
	Excerpt string `json:"excerpt"`
}

// ModelAnswer is the structured answer object. Before Finalize it is
// adversarial input: no field may be trusted until checked against the
// retrieval result.
type ModelAnswer struct {
	Answer       string      `json:"answer"`
	References   []Reference `json:"references"`
	Trace        []string    `json:"trace"`
	Sources      []string    `json:"sources"`
	Missing      []string    `json:"missing"`
	CannotAnswer bool        `json:"cannot_answer"`
	Reason       string      `json:"reason"`
}

const (
	// maxBackfillSources caps how many supplied paths are used when the
	// model forgot to cite anything.
	maxBackfillSources = 5

	// maxExcerptChars bounds a synthesized reference excerpt.
	maxExcerptChars = 300

	reasonEmptyRetrieval = "no repository files could be retrieved: the repository may be private " +
		"(supply credentials), the API rate limit may be exhausted, or the repository reference may be invalid"
	reasonNoGroundedContent = "the supplied files did not contain information to ground an answer"
	reasonScrubbed          = "unverified file references were removed from the answer"

	// scrubbedAnswer replaces an answer whose every paragraph mentioned an
	// ungrounded file. It is still a valid, minimal grounded answer.
	scrubbedAnswer = "Some of the requested components are not present in the files that were examined."
)

// Parse decodes an untrusted JSON object into a ModelAnswer. Fields of the
// wrong shape are dropped rather than failing the whole decode.
func Parse(raw []byte) (ModelAnswer, error) {
	var loose struct {
		Answer       json.RawMessage `json:"answer"`
		References   json.RawMessage `json:"references"`
		Trace        json.RawMessage `json:"trace"`
		Sources      json.RawMessage `json:"sources"`
		Missing      json.RawMessage `json:"missing"`
		CannotAnswer json.RawMessage `json:"cannot_answer"`
		Reason       json.RawMessage `json:"reason"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return ModelAnswer{}, err
	}

	var a ModelAnswer
	tryUnmarshal(loose.Answer, &a.Answer)
	tryUnmarshal(loose.References, &a.References)
	tryUnmarshal(loose.Trace, &a.Trace)
	tryUnmarshal(loose.Sources, &a.Sources)
	tryUnmarshal(loose.Missing, &a.Missing)
	tryUnmarshal(loose.CannotAnswer, &a.CannotAnswer)
	tryUnmarshal(loose.Reason, &a.Reason)
	return a, nil
}

func tryUnmarshal(raw json.RawMessage, dst any) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

// EmptyRetrievalAnswer is the canonical result when retrieval supplied zero
// files: the model is bypassed entirely.
func EmptyRetrievalAnswer() ModelAnswer {
	return ModelAnswer{
		References:   []Reference{},
		Trace:        []string{},
		Sources:      []string{},
		Missing:      []string{},
		CannotAnswer: true,
		Reason:       reasonEmptyRetrieval,
	}
}

// Finalize validates one ModelAnswer against the supplied file set and
// returns the grounded result. It is a pure transformation; the input value
// is not modified.
func Finalize(a ModelAnswer, res retrieval.RetrievalResult) ModelAnswer {
	// Zero supplied files means no grounded answer is possible, whatever
	// the model said.
	if len(res.Files) == 0 {
		return EmptyRetrievalAnswer()
	}

	a.Sources = groundPaths(a.Sources, &res)
	a.References = groundReferences(a.References, &res)
	if a.Trace == nil {
		a.Trace = []string{}
	}
	if a.Missing == nil {
		a.Missing = []string{}
	}

	if len(a.Sources) == 0 && !a.CannotAnswer {
		for i, f := range res.Files {
			if i >= maxBackfillSources {
				break
			}
			a.Sources = append(a.Sources, f.Path)
		}
	}

	if len(a.References) == 0 && len(a.Sources) > 0 && !a.CannotAnswer {
		a.References = append(a.References, synthesizeReference(a.Sources[0], &res))
	}

	if a.CannotAnswer || (len(a.References) == 0 && strings.TrimSpace(a.Answer) == "") {
		a.Answer = ""
		a.References = []Reference{}
		a.Trace = []string{}
		a.Missing = []string{}
		a.CannotAnswer = true
		if strings.TrimSpace(a.Reason) == "" {
			a.Reason = reasonNoGroundedContent
		}
		return a
	}
	a.CannotAnswer = false

	a = scrubProse(a, &res)
	return a
}

func groundPaths(in []string, res *retrieval.RetrievalResult) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if res.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func groundReferences(in []Reference, res *retrieval.RetrievalResult) []Reference {
	out := make([]Reference, 0, len(in))
	for _, r := range in {
		if res.Has(r.Path) {
			out = append(out, r)
		}
	}
	return out
}

func synthesizeReference(path string, res *retrieval.RetrievalResult) Reference {
	var excerpt string
	for _, f := range res.Files {
		if f.Path == path {
			excerpt = f.Content
			break
		}
	}
	if len(excerpt) > maxExcerptChars {
		excerpt = excerpt[:maxExcerptChars]
	}
	return Reference{Path: path, Excerpt: excerpt}
}
