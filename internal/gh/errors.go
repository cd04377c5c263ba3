package gh

import "errors"

var (
	// ErrRateLimited signals that the leased token ran out of quota. The pool
	// record has already been zeroed; the caller should acquire a fresh lease
	// and retry the unit of work.
	ErrRateLimited = errors.New("gh: rate limited")

	// ErrInvalidToken signals that the remote rejected the token outright.
	// The token has been permanently disabled in the pool.
	ErrInvalidToken = errors.New("gh: invalid token")

	// ErrMalformed signals a response body that could not be decoded. The
	// affected page is skipped, not retried.
	ErrMalformed = errors.New("gh: malformed response")

	// ErrNotFound signals an unknown repository, branch, or resource.
	ErrNotFound = errors.New("gh: not found")

	// ErrPageLimit signals that the search API refused pagination this deep.
	// Pages beyond the limit are skipped silently.
	ErrPageLimit = errors.New("gh: page beyond search depth limit")
)
