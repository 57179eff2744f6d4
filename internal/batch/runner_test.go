package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/castlemilk/cse-statements/internal/extraction"
	"github.com/castlemilk/cse-statements/internal/report"
	"github.com/castlemilk/cse-statements/internal/store"
)

const cover = "DIPPED PRODUCTS PLC\nINTERIM REPORT FOR THE QUARTER ENDED 30TH JUNE 2024\n" +
	"Unaudited interim financial statements for the period."

const statement = `STATEMENT OF PROFIT OR LOSS
Revenue from contracts with customers 1,000,000 900,000
Cost of sales (600,000) (550,000)
Gross profit 400,000 350,000
Other income and gains 20,000 10,000
Distribution costs (120,000) (100,000)
Administrative expenses (150,000) (140,000)
Profit for the period 100,000 90,000
STATEMENT OF FINANCIAL POSITION
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingTable keeps every write so tests can inspect incremental output.
type recordingTable struct {
	mu     sync.Mutex
	writes [][]report.Row
	failAt int // 1-based write number to fail, 0 never
}

func (t *recordingTable) Write(_ context.Context, rows []report.Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, append([]report.Row(nil), rows...))
	if t.failAt > 0 && len(t.writes) == t.failAt {
		return errors.New("disk full")
	}
	return nil
}

func (t *recordingTable) last() []report.Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes[len(t.writes)-1]
}

func makeCorpus(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	root := t.TempDir()
	var paths []string
	for _, name := range names {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o644))
		paths = append(paths, p)
	}
	return root, paths
}

func TestRunner_IsolatesFailingFile(t *testing.T) {
	root, paths := makeCorpus(t,
		"DIPD.N0000_01.pdf", "DIPD.N0000_02.pdf", "DIPD.N0000_03.pdf", "DIPD.N0000_04.pdf", "DIPD.N0000_05.pdf")

	ctrl := gomock.NewController(t)
	source := extraction.NewMockTextSource(ctrl)
	for i, p := range paths {
		if i == 2 {
			source.EXPECT().Pages(gomock.Any(), p).Return(nil, &extraction.ExtractionError{
				Code: extraction.ErrUnreadableDocument, Message: "open pdf", Path: p, Cause: errors.New("malformed xref"),
			})
			continue
		}
		source.EXPECT().Pages(gomock.Any(), p).Return([]string{cover, statement}, nil)
	}

	table := &recordingTable{}
	st := store.NewMemoryStore()
	runner := New(Config{Root: root, Output: "out.csv", Store: st, Logger: quietLogger()},
		extraction.NewExtractor(source, quietLogger()), table)

	run, rows, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 5)
	for i, row := range rows {
		assert.Equal(t, paths[i], row.FilePath)
		if i == 2 {
			assert.Equal(t, "P&L parse error: UNREADABLE_DOCUMENT: open pdf: malformed xref", row.Error)
			assert.Nil(t, row.Revenue)
			assert.Nil(t, row.NetIncome)
			continue
		}
		assert.Empty(t, row.Error)
		assert.Equal(t, "2024-06-30", row.QuarterEnd)
		require.NotNil(t, row.Revenue)
		assert.Equal(t, int64(1000000), *row.Revenue)
		require.NotNil(t, row.OperatingIncome)
		assert.Equal(t, int64(690000), *row.OperatingIncome)
	}

	// Header-only write, then one rewrite per file.
	require.Len(t, table.writes, 6)
	for i, w := range table.writes {
		assert.Len(t, w, i)
	}
	assert.Equal(t, rows, table.last())

	assert.Equal(t, 5, run.Rows)
	assert.Equal(t, 1, run.Failed)
	saved, _, err := st.ListReports(context.Background(), "", "", 0, "")
	require.NoError(t, err)
	assert.Equal(t, rows, saved)
}

type slowExtractor struct {
	delays map[string]time.Duration
}

func (e *slowExtractor) ExtractFile(_ context.Context, path string) extraction.Result {
	time.Sleep(e.delays[filepath.Base(path)])
	return extraction.Result{Path: path, Metrics: extraction.MetricSet{}}
}

func TestRunner_WorkersKeepPathOrder(t *testing.T) {
	names := []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf", "f.pdf"}
	root, paths := makeCorpus(t, names...)
	ex := &slowExtractor{delays: map[string]time.Duration{
		"a.pdf": 40 * time.Millisecond,
		"b.pdf": 5 * time.Millisecond,
		"c.pdf": 20 * time.Millisecond,
		"d.pdf": 1 * time.Millisecond,
	}}

	var mu sync.Mutex
	var progress []int
	table := &recordingTable{}
	runner := New(Config{Root: root, Workers: 4, Logger: quietLogger(), OnProgress: func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, len(names), total)
		progress = append(progress, done)
	}}, ex, table)

	_, rows, err := runner.Run(context.Background())
	require.NoError(t, err)

	var got []string
	for _, r := range rows {
		got = append(got, r.FilePath)
	}
	assert.Equal(t, paths, got)

	for _, w := range table.writes {
		for i, r := range w {
			assert.Equal(t, paths[i], r.FilePath, "every write is a path-ordered prefix")
		}
	}
	assert.IsIncreasing(t, progress)
	assert.Equal(t, len(names), progress[len(progress)-1])
}

func TestRunner_FatalErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		runner := New(Config{Root: filepath.Join(t.TempDir(), "nope"), Logger: quietLogger()},
			&slowExtractor{}, &recordingTable{})
		_, _, err := runner.Run(context.Background())
		assert.ErrorContains(t, err, "walk")
	})

	t.Run("table write fails", func(t *testing.T) {
		root, _ := makeCorpus(t, "a.pdf", "b.pdf", "c.pdf")
		table := &recordingTable{failAt: 3}
		runner := New(Config{Root: root, Logger: quietLogger()}, &slowExtractor{}, table)

		_, _, err := runner.Run(context.Background())
		require.ErrorContains(t, err, "write output table")
		assert.Len(t, table.writes, 3, "no further files are processed after a failed write")
	})

	t.Run("store fails", func(t *testing.T) {
		root, _ := makeCorpus(t, "a.pdf")
		ctrl := gomock.NewController(t)
		st := store.NewMockStore(ctrl)
		st.EXPECT().SaveRun(gomock.Any(), gomock.Any(), gomock.Len(1)).Return(errors.New("database is locked"))

		runner := New(Config{Root: root, Store: st, Logger: quietLogger()}, &slowExtractor{}, &recordingTable{})
		_, rows, err := runner.Run(context.Background())
		require.ErrorContains(t, err, "save run")
		assert.Len(t, rows, 1)
	})
}

func TestRunner_EmptyCorpusWritesHeader(t *testing.T) {
	root := t.TempDir()
	table := &recordingTable{}
	run, rows, err := New(Config{Root: root, Logger: quietLogger()}, &slowExtractor{}, table).Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, run.Rows)
	require.Len(t, table.writes, 1)
	assert.Empty(t, table.writes[0])
}

func TestRunner_RunMetadata(t *testing.T) {
	root, _ := makeCorpus(t, "a.pdf")
	runner := New(Config{Root: root, Output: "data/processed/financial_data.csv", Logger: quietLogger()},
		&slowExtractor{}, &recordingTable{})
	fixed := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	runner.now = func() time.Time { return fixed }
	runner.newID = func() string { return "run-42" }

	run, _, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Run{
		ID: "run-42", CreatedAt: fixed, Root: root, Output: "data/processed/financial_data.csv", Rows: 1,
	}, run)
}

func TestRunner_CancelledContext(t *testing.T) {
	root, _ := makeCorpus(t, "a.pdf", "b.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New(Config{Root: root, Logger: quietLogger()}, &slowExtractor{}, &recordingTable{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiscover(t *testing.T) {
	root, _ := makeCorpus(t,
		"REXP/REXP.N0000_02.pdf",
		"DIPD/DIPD.N0000_10.PDF",
		"DIPD/DIPD.N0000_02.pdf",
		"DIPD/notes.txt",
		"readme.md",
	)

	got, err := Discover(root)
	require.NoError(t, err)

	var rel []string
	for _, p := range got {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{
		"DIPD/DIPD.N0000_02.pdf",
		"DIPD/DIPD.N0000_10.PDF",
		"REXP/REXP.N0000_02.pdf",
	}, rel)
}

func TestOrderedSink(t *testing.T) {
	var flushed []int
	s := &orderedSink{
		rows:  make([]report.Row, 4),
		ready: make([]bool, 4),
		flush: func(rows []report.Row) error {
			flushed = append(flushed, len(rows))
			return nil
		},
	}
	for _, i := range []int{2, 0, 3, 1} {
		require.NoError(t, s.put(i, report.Row{FileName: fmt.Sprint(i)}))
	}
	assert.Equal(t, []int{1, 4}, flushed)
	assert.Len(t, s.done(), 4)
}
