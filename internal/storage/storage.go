package storage

import (
	"context"
	"time"
)

// Kind classifies what a finding is.
const (
	KindSubdomain = "subdomain"
	KindPath      = "path"
)

// Finding is one persisted discovery from a run.
type Finding struct {
	ID        string
	RunID     string
	Kind      string // KindSubdomain or KindPath
	Value     string
	Source    string // originating blob URL or owner/repo@branch; may be empty
	CreatedAt time.Time
}

// Filter allows querying for specific findings.
type Filter struct {
	RunID  string
	Kind   string
	Value  string
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend defines the interface for storing and querying findings.
type Backend interface {
	Save(ctx context.Context, f *Finding) error
	Query(ctx context.Context, filter Filter) ([]*Finding, error)
	Close() error
}
