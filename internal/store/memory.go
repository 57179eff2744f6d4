package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/castlemilk/cse-statements/internal/report"
)

// MemoryStore implements Store interface with in-memory storage
type MemoryStore struct {
	mu sync.RWMutex

	runs   map[string]Run
	rows   map[string][]report.Row
	latest string
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]Run),
		rows: make(map[string][]report.Row),
	}
}

func (m *MemoryStore) SaveRun(ctx context.Context, run Run, rows []report.Row) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID] = run
	m.rows[run.ID] = append([]report.Row(nil), rows...)
	m.latest = run.ID
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, runID string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return run, nil
}

func (m *MemoryStore) LatestRun(ctx context.Context) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.latest == "" {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	return m.runs[m.latest], nil
}

func (m *MemoryStore) ListReports(ctx context.Context, runID, issuer string, pageSize int32, pageToken string) ([]report.Row, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if runID == "" {
		runID = m.latest
	}
	rows, ok := m.rows[runID]
	if !ok {
		return nil, "", fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}

	var filtered []positionedRow
	for i, r := range rows {
		if issuer != "" && !strings.EqualFold(r.Issuer, issuer) {
			continue
		}
		filtered = append(filtered, positionedRow{pos: i, row: r})
	}
	return paginate(filtered, pageSize, pageToken)
}
