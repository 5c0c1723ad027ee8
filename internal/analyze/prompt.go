package analyze

import "repostack/internal/retrieval"

// answerPrompt instructs the model to answer strictly from the supplied
// files and to emit the structured answer object. The validator enforces
// the grounding rules afterwards regardless of model compliance.
const answerPrompt = `You are a senior engineer answering a question about a code repository.
You are given the question and a set of repository files. Answer ONLY from
the supplied files. Never mention a file that is not in the input.

Return a single JSON object with exactly these fields:
{
  "answer": "markdown answer to the question",
  "references": [{"path": "file path from the input", "excerpt": "short quoted snippet"}],
  "trace": ["short reasoning steps"],
  "sources": ["file paths from the input that informed the answer"],
  "missing": ["things the question asked about that the files do not cover"],
  "cannot_answer": false,
  "reason": "required when cannot_answer is true, else empty"
}

If the files do not contain enough information, set "cannot_answer": true
and explain in "reason". Do not guess.`

// promptInput is the [INPUT JSON] payload appended to the prompt.
type promptInput struct {
	Question string                   `json:"question"`
	Files    []retrieval.SuppliedFile `json:"files"`
}
