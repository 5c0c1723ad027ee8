package githubstore

import "errors"

// ErrNotFound means the repository, ref, or path does not exist or is not
// accessible with the configured credentials.
var ErrNotFound = errors.New("github: not found")

// ErrRateLimited means the GitHub API quota is exhausted. Callers should
// surface guidance to supply a token with a higher limit.
var ErrRateLimited = errors.New("github: rate limited")
