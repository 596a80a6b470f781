package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"listing-leads/models"
)

// DiscardCSVWriter appends discarded records to a CSV audit file.
// It is safe for concurrent use by several tenant runs.
type DiscardCSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var discardHeader = []string{"tenant_id", "portal", "external_id", "kind", "reason", "detail", "scraped_at"}

// NewDiscardCSVWriter opens (or creates) the CSV file at the given path and writes the
// header row when the file is new. Intermediate directories are created automatically.
func NewDiscardCSVWriter(path string) (*DiscardCSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(discardHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &DiscardCSVWriter{file: f, writer: w}, nil
}

// WriteDiscards appends one row per discard.
func (c *DiscardCSVWriter) WriteDiscards(discards []models.Discard) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range discards {
		row := []string{
			d.TenantID,
			d.Portal,
			d.ExternalID,
			string(d.Kind),
			d.Reason,
			d.Detail,
			d.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *DiscardCSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
