package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/option"
)

// Table is an output table. Every Write replaces the whole table with rows,
// so a partially completed run always leaves a readable table behind.
type Table interface {
	Write(ctx context.Context, rows []Row) error
}

// Options configures tables that talk to remote services.
type Options struct {
	// GCS client options for gs:// outputs.
	GCS []option.ClientOption
}

// Open selects the table implementation for path: gs://bucket/object goes
// to Cloud Storage, *.xlsx to a workbook, anything else to a CSV file.
func Open(ctx context.Context, path string, opts Options) (Table, error) {
	switch {
	case strings.HasPrefix(path, "gs://"):
		return NewGCSTable(ctx, path, opts.GCS...)
	case strings.EqualFold(filepath.Ext(path), ".xlsx"):
		return NewXLSXTable(path), nil
	default:
		return NewCSVFile(path), nil
	}
}

// CSVFile writes rows as UTF-8 CSV with a single header row.
type CSVFile struct {
	Path string
}

// NewCSVFile creates a CSV table at path.
func NewCSVFile(path string) *CSVFile {
	return &CSVFile{Path: path}
}

// Write implements Table.
func (t *CSVFile) Write(_ context.Context, rows []Row) error {
	return writeFileAtomic(t.Path, func(w io.Writer) error {
		return EncodeCSV(w, rows)
	})
}

// EncodeCSV writes the header and rows to w.
func EncodeCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeFileAtomic writes to a temp file next to path and renames it into
// place, creating parent directories as needed.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
