package tokenpool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Token represents a single API token with quota tracking.
type Token struct {
	Value     string
	Remaining int
	ResetAt   time.Time
	LastUsed  time.Time
	Invalid   bool
}

// Lease grants the right to use one token for one request. Workers hold a
// lease only for the duration of a single request and report the outcome back
// through Update or MarkInvalid.
type Lease struct {
	Value string
	idx   int
}

// ErrExhausted is returned when every token in the pool is either invalid or
// out of quota. ResetAt is the earliest time any token becomes usable again;
// it is zero when no token can ever recover.
type ErrExhausted struct {
	ResetAt time.Time
}

func (e *ErrExhausted) Error() string {
	if e.ResetAt.IsZero() {
		return "token pool: no usable token"
	}
	return fmt.Sprintf("token pool: no usable token until %s", e.ResetAt.Format(time.RFC3339))
}

// Pool manages a collection of API tokens. It is the single mutation point for
// quota state; all access is serialized through one mutex.
type Pool struct {
	mu       sync.Mutex
	tokens   []*Token
	rrIndex  int
	maxWait  time.Duration
	initialQ int
}

// Config defines settings for the token pool.
type Config struct {
	// MaxWait bounds how long AcquireWait blocks for a quota reset before
	// giving up. Zero means 15 minutes.
	MaxWait time.Duration
	// InitialQuota is assumed for freshly loaded tokens until the first
	// response reports real headers. Zero means 30 (the code-search budget).
	InitialQuota int
}

// NewPool creates a new token pool.
func NewPool(cfg Config) *Pool {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 15 * time.Minute
	}
	if cfg.InitialQuota <= 0 {
		cfg.InitialQuota = 30
	}
	return &Pool{
		maxWait:  cfg.MaxWait,
		initialQ: cfg.InitialQuota,
	}
}

// LoadFile reads tokens from a file, one per line. Empty lines and lines
// starting with '#' are ignored.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var tokens []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read token file: %w", err)
	}

	p.Add(tokens...)
	return nil
}

// Add appends tokens to the pool. Duplicate values are ignored.
func (p *Pool) Add(values ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || p.find(v) != nil {
			continue
		}
		p.tokens = append(p.tokens, &Token{
			Value:     v,
			Remaining: p.initialQ,
		})
	}
}

// Len returns the number of tokens in the pool, including invalid ones.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tokens)
}

// Acquire returns a lease on a usable token, preferring the highest remaining
// quota and falling back to round-robin among ties. Tokens whose reset time
// has passed are considered replenished. Returns *ErrExhausted when nothing is
// usable.
func (p *Pool) Acquire() (*Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	best := -1
	bestRemaining := 0
	var earliestReset time.Time
	anyRecoverable := false

	n := len(p.tokens)
	for i := 0; i < n; i++ {
		// Walk from rrIndex so equal-quota tokens rotate between calls.
		idx := (p.rrIndex + i) % n
		tok := p.tokens[idx]
		if tok.Invalid {
			continue
		}
		anyRecoverable = true

		if tok.Remaining <= 0 {
			if !tok.ResetAt.IsZero() && now.After(tok.ResetAt) {
				// Reset window elapsed; assume quota restored.
				tok.Remaining = p.initialQ
				tok.ResetAt = time.Time{}
			} else {
				if earliestReset.IsZero() || tok.ResetAt.Before(earliestReset) {
					earliestReset = tok.ResetAt
				}
				continue
			}
		}

		if tok.Remaining > bestRemaining {
			best = idx
			bestRemaining = tok.Remaining
		}
	}

	if best < 0 {
		if !anyRecoverable {
			return nil, &ErrExhausted{}
		}
		return nil, &ErrExhausted{ResetAt: earliestReset}
	}

	tok := p.tokens[best]
	tok.LastUsed = now
	p.rrIndex = (best + 1) % n
	return &Lease{Value: tok.Value, idx: best}, nil
}

// AcquireWait behaves like Acquire but blocks until the earliest quota reset
// when the pool is momentarily exhausted. It fails once the cumulative wait
// would exceed MaxWait, or when no token can ever recover.
func (p *Pool) AcquireWait(ctx context.Context) (*Lease, error) {
	deadline := time.Now().Add(p.maxWait)

	for {
		lease, err := p.Acquire()
		if err == nil {
			return lease, nil
		}

		var exhausted *ErrExhausted
		if !errors.As(err, &exhausted) {
			return nil, err
		}
		if exhausted.ResetAt.IsZero() {
			return nil, err
		}

		wakeAt := exhausted.ResetAt.Add(time.Second)
		if wakeAt.After(deadline) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Until(wakeAt)):
		}
	}
}

// Update merges remote-reported quota state into the pool's record for the
// leased token. Remaining is clamped so that repeated identical headers are
// idempotent and quota never increases within an open reset window.
func (p *Pool) Update(lease *Lease, remaining int, resetAt time.Time) {
	if lease == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tok := p.find(lease.Value)
	if tok == nil || tok.Invalid {
		return
	}

	if !tok.ResetAt.IsZero() && resetAt.Equal(tok.ResetAt) && remaining > tok.Remaining {
		// Stale response from an earlier concurrent request; keep the
		// lower count for the same window.
		return
	}

	tok.Remaining = remaining
	if !resetAt.IsZero() {
		tok.ResetAt = resetAt
	}
}

// MarkInvalid permanently disables the leased token for the rest of the run,
// e.g. after the remote rejected it as unauthorized.
func (p *Pool) MarkInvalid(lease *Lease) {
	if lease == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok := p.find(lease.Value); tok != nil {
		tok.Invalid = true
		tok.Remaining = 0
	}
}

// Usable reports how many tokens are currently neither invalid nor out of
// quota.
func (p *Pool) Usable() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	count := 0
	for _, tok := range p.tokens {
		if tok.Invalid {
			continue
		}
		if tok.Remaining > 0 || (!tok.ResetAt.IsZero() && now.After(tok.ResetAt)) {
			count++
		}
	}
	return count
}

// find locates a token by value. Must be called with the lock held.
func (p *Pool) find(value string) *Token {
	for _, tok := range p.tokens {
		if tok.Value == value {
			return tok
		}
	}
	return nil
}
