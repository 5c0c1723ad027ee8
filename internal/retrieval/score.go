package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ----------------------------------------------------------------------------
// Lexical relevance scorer
// ----------------------------------------------------------------------------

const (
	// pathHitWeight rewards filename/directory relevance before any
	// content is read.
	pathHitWeight = 10
	// contentHitCap bounds the contribution of one keyword so a
	// keyword-dense file cannot dominate purely on repetition.
	contentHitCap = 20

	// truncateBytes is the per-file content ceiling applied before scoring
	// and before inclusion in the prompt.
	truncateBytes = 8_000

	// truncationMarker tags partially supplied content. The selector strips
	// it and surfaces a boolean instead.
	truncationMarker = "\n...[truncated]"

	// fetchWorkers bounds concurrent content fetches within one request.
	fetchWorkers = 6
)

var nonWordRun = regexp.MustCompile(`\W+`)

// ExtractKeywords lower-cases the question, splits on non-word runs, and
// drops tokens of length <= 3. An empty result is valid: every file then
// scores zero and ranking degenerates to structural order.
func ExtractKeywords(question string) []string {
	parts := nonWordRun.Split(strings.ToLower(question), -1)
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		if len(p) <= 3 {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// pathScore is the path-only portion of the lexical score, used to pick the
// fetch window before any content is available.
func pathScore(path string, keywords []string) float64 {
	lower := strings.ToLower(path)
	var s float64
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			s += pathHitWeight
		}
	}
	return s
}

// lexicalScore combines path hits with capped content occurrence counts.
func lexicalScore(path, content string, keywords []string) float64 {
	s := pathScore(path, keywords)
	lower := strings.ToLower(content)
	for _, kw := range keywords {
		n := strings.Count(lower, kw)
		if n > contentHitCap {
			n = contentHitCap
		}
		s += float64(n)
	}
	return s
}

// fetchWindow picks which candidates are worth fetching, pre-ranked by
// path-keyword hits then shallower depth. Fetching the entire tree of a
// large repository would blow the rate budget for no ranking benefit.
func fetchWindow(cands []Candidate, keywords []string, maxFiles int) []Candidate {
	window := maxFiles * 3
	if window < 24 {
		window = 24
	}
	ordered := make([]Candidate, len(cands))
	copy(ordered, cands)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := pathScore(ordered[i].Path, keywords), pathScore(ordered[j].Path, keywords)
		if si != sj {
			return si > sj
		}
		return ordered[i].Depth < ordered[j].Depth
	})
	if len(ordered) > window {
		ordered = ordered[:window]
	}
	return ordered
}

type fetchFunc func(ctx context.Context, path string) ([]byte, error)

// scoreCandidates fetches the window concurrently, scores each file whose
// content arrived, and returns the pool sorted by lexical score descending
// with shallower paths winning ties. Fetch failures silently drop the file.
func scoreCandidates(ctx context.Context, cands []Candidate, keywords []string, fetch fetchFunc) []ScoredFile {
	results := make([]ScoredFile, len(cands))
	ok := make([]bool, len(cands))

	tasks := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < fetchWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				raw, err := fetch(ctx, cands[i].Path)
				if err != nil {
					continue
				}
				content := string(raw)
				truncated := false
				if len(content) > truncateBytes {
					content = content[:truncateBytes] + truncationMarker
					truncated = true
				}
				results[i] = ScoredFile{
					Path:      cands[i].Path,
					Content:   content,
					ByteSize:  len(content),
					Truncated: truncated,
					Lexical:   lexicalScore(cands[i].Path, content, keywords),
					Depth:     cands[i].Depth,
				}
				ok[i] = true
			}
		}()
	}
feed:
	for i := range cands {
		select {
		case tasks <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	wg.Wait()

	pool := make([]ScoredFile, 0, len(cands))
	for i := range cands {
		if ok[i] {
			sf := results[i]
			sf.Final = sf.Lexical
			pool = append(pool, sf)
		}
	}
	sortByFinal(pool)
	return pool
}

// sortByFinal orders by final score descending, shallower path on ties.
func sortByFinal(files []ScoredFile) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Final != files[j].Final {
			return files[i].Final > files[j].Final
		}
		return files[i].Depth < files[j].Depth
	})
}
