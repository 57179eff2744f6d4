// Package batch runs extraction over a directory of report PDFs and keeps the
// output table current after every file.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/castlemilk/cse-statements/internal/extraction"
	"github.com/castlemilk/cse-statements/internal/report"
	"github.com/castlemilk/cse-statements/internal/store"
)

// FileExtractor extracts one document. Failures are carried in the result.
type FileExtractor interface {
	ExtractFile(ctx context.Context, path string) extraction.Result
}

// Config holds the explicit inputs of a run.
type Config struct {
	// Root is walked recursively for *.pdf files.
	Root string
	// Output is recorded on the saved run.
	Output string
	// Workers > 1 extracts files concurrently. Rows are still written in
	// path order.
	Workers int
	// Store, when set, receives the rows once the run completes.
	Store store.Store
	// OnProgress, when set, is called after each table rewrite.
	OnProgress func(done, total int)
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Runner runs batch extraction.
type Runner struct {
	cfg       Config
	extractor FileExtractor
	table     report.Table
	now       func() time.Time
	newID     func() string
}

// New creates a Runner writing to table.
func New(cfg Config, extractor FileExtractor, table report.Table) *Runner {
	cfg.defaults()
	return &Runner{
		cfg:       cfg,
		extractor: extractor,
		table:     table,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run processes every PDF under the root. One file's failure never stops the
// batch; it shows up as that file's row error. Errors returned from Run are
// fatal: the directory could not be walked, the table could not be written,
// or the run could not be stored.
func (r *Runner) Run(ctx context.Context) (store.Run, []report.Row, error) {
	paths, err := Discover(r.cfg.Root)
	if err != nil {
		return store.Run{}, nil, err
	}
	run := store.Run{
		ID:        r.newID(),
		CreatedAt: r.now(),
		Root:      r.cfg.Root,
		Output:    r.cfg.Output,
	}
	log := r.cfg.Logger.With("run", run.ID)
	log.Info("starting batch", "root", r.cfg.Root, "files", len(paths), "workers", r.cfg.Workers)

	sink := &orderedSink{
		rows:  make([]report.Row, len(paths)),
		ready: make([]bool, len(paths)),
		flush: func(rows []report.Row) error {
			if err := r.table.Write(ctx, rows); err != nil {
				return fmt.Errorf("write output table: %w", err)
			}
			if r.cfg.OnProgress != nil {
				r.cfg.OnProgress(len(rows), len(paths))
			}
			return nil
		},
	}
	if err := sink.flush(nil); err != nil {
		return store.Run{}, nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.extractor.ExtractFile(gctx, path)
			row := report.FromResult(res)
			if res.Err != nil {
				log.Warn("file failed", "path", path, "err", res.Err)
			} else {
				log.Info("processed file", "path", path, "issuer", res.Issuer,
					"quarter_end", row.QuarterEnd, "method", res.Date.Method)
			}
			return sink.put(i, row)
		})
	}
	if err := g.Wait(); err != nil {
		return store.Run{}, sink.done(), err
	}
	if err := ctx.Err(); err != nil {
		return store.Run{}, sink.done(), err
	}

	rows := sink.done()
	run.Rows = len(rows)
	run.Failed = store.CountFailed(rows)
	if r.cfg.Store != nil {
		if err := r.cfg.Store.SaveRun(ctx, run, rows); err != nil {
			return store.Run{}, rows, fmt.Errorf("save run: %w", err)
		}
	}
	log.Info("batch complete", "rows", run.Rows, "failed", run.Failed)
	return run, rows, nil
}

// Discover returns every *.pdf file under root, sorted by path. The
// extension match ignores case.
func Discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// orderedSink collects rows by input position and flushes the contiguous
// completed prefix, so the table always lists rows in path order.
type orderedSink struct {
	mu      sync.Mutex
	rows    []report.Row
	ready   []bool
	flushed int
	flush   func([]report.Row) error
}

func (s *orderedSink) put(i int, row report.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[i] = row
	s.ready[i] = true
	n := s.flushed
	for n < len(s.rows) && s.ready[n] {
		n++
	}
	if n == s.flushed {
		return nil
	}
	s.flushed = n
	return s.flush(s.rows[:n])
}

// done returns the flushed rows.
func (s *orderedSink) done() []report.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.Row(nil), s.rows[:s.flushed]...)
}
