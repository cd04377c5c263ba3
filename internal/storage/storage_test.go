package storage

import (
	"context"
	"testing"
	"time"
)

// Ensure Backend is implementable by an in-memory mock.
type mockBackend struct {
	saved []*Finding
}

func (m *mockBackend) Save(ctx context.Context, f *Finding) error {
	m.saved = append(m.saved, f)
	return nil
}
func (m *mockBackend) Query(ctx context.Context, filter Filter) ([]*Finding, error) {
	return m.saved, nil
}
func (m *mockBackend) Close() error { return nil }

func TestBackendInterface(t *testing.T) {
	var b Backend = &mockBackend{}

	err := b.Save(context.Background(), &Finding{
		ID:        "f-1",
		RunID:     "run-1",
		Kind:      KindSubdomain,
		Value:     "api.example.com",
		Source:    "https://github.com/o/r/blob/main/x.txt",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := b.Query(context.Background(), Filter{Kind: KindSubdomain})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 || found[0].Value != "api.example.com" {
		t.Errorf("unexpected findings: %+v", found)
	}
}
