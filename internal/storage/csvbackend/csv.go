package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/FranksOps/gitrecon/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"run_id",
	"kind",
	"value",
	"source",
	"created_at",
}

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: open: %w", err)
	}

	// Write headers when the file is new
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: stat: %w", err)
	}
	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: flush header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, f *storage.Finding) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := csv.NewWriter(b.file)
	record := []string{
		f.ID,
		f.RunID,
		f.Kind,
		f.Value,
		f.Source,
		f.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("csvbackend: write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: flush record: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Finding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: seek: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvbackend: read: %w", err)
	}

	var allFiltered []*storage.Finding
	for i, rec := range records {
		if i == 0 || len(rec) != len(headers) {
			continue // header row or malformed line
		}

		createdAt, err := time.Parse(time.RFC3339Nano, rec[5])
		if err != nil {
			return nil, fmt.Errorf("csvbackend: parse created_at: %w", err)
		}

		f := &storage.Finding{
			ID:        rec[0],
			RunID:     rec[1],
			Kind:      rec[2],
			Value:     rec[3],
			Source:    rec[4],
			CreatedAt: createdAt,
		}

		if filter.RunID != "" && f.RunID != filter.RunID {
			continue
		}
		if filter.Kind != "" && f.Kind != filter.Kind {
			continue
		}
		if filter.Value != "" && f.Value != filter.Value {
			continue
		}
		if filter.Since != nil && f.CreatedAt.Before(*filter.Since) {
			continue
		}

		allFiltered = append(allFiltered, f)
	}

	// Order by created_at DESC (reverse the append order)
	for i, j := 0, len(allFiltered)-1; i < j; i, j = i+1, j-1 {
		allFiltered[i], allFiltered[j] = allFiltered[j], allFiltered[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(allFiltered) {
			return []*storage.Finding{}, nil
		}
		allFiltered = allFiltered[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(allFiltered) {
		allFiltered = allFiltered[:filter.Limit]
	}

	return allFiltered, nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
