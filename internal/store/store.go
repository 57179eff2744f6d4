// Package store persists batch runs and their report rows.
package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/castlemilk/cse-statements/internal/report"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=store

// ErrNotFound is returned when a run does not exist, or when no run has been
// saved yet.
var ErrNotFound = errors.New("not found")

// ErrInvalidPageToken is returned for a page token that does not decode.
var ErrInvalidPageToken = errors.New("invalid page token")

// defaultPageSize applies when a list call passes pageSize <= 0.
const defaultPageSize = 100

// Run describes one completed batch run.
type Run struct {
	ID        string    `json:"id" firestore:"id"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	Root      string    `json:"root" firestore:"root"`
	Output    string    `json:"output" firestore:"output"`
	Rows      int       `json:"rows" firestore:"rows"`
	Failed    int       `json:"failed" firestore:"failed"`
}

// Store defines the persistence operations used by the batch runner and the
// HTTP server.
type Store interface {
	// SaveRun stores rows under run.ID and makes it the latest run.
	SaveRun(ctx context.Context, run Run, rows []report.Row) error
	GetRun(ctx context.Context, runID string) (Run, error)
	LatestRun(ctx context.Context) (Run, error)
	// ListReports returns a run's rows in table order, optionally filtered by
	// issuer. An empty runID means the latest run.
	ListReports(ctx context.Context, runID, issuer string, pageSize int32, pageToken string) ([]report.Row, string, error)
}

// EncodePageToken encodes a row position into a page token.
func EncodePageToken(pos int) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(pos)))
}

// DecodePageToken decodes a page token back to the position of the last row
// returned. An empty token decodes to -1.
func DecodePageToken(token string) (int, error) {
	if token == "" {
		return -1, nil
	}
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	pos, err := strconv.Atoi(string(b))
	if err != nil || pos < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPageToken, token)
	}
	return pos, nil
}

// docID is the zero-padded key of a row, so lexical and table order agree.
func docID(pos int) string {
	return fmt.Sprintf("%06d", pos)
}

// positionedRow is a report row together with its table position.
type positionedRow struct {
	pos int
	row report.Row
}

// paginate applies cursor pagination to rows sorted by position.
func paginate(rows []positionedRow, pageSize int32, pageToken string) ([]report.Row, string, error) {
	after, err := DecodePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	start := len(rows)
	for i, r := range rows {
		if r.pos > after {
			start = i
			break
		}
	}
	rows = rows[start:]

	var next string
	if len(rows) > int(pageSize) {
		rows = rows[:pageSize]
		next = EncodePageToken(rows[len(rows)-1].pos)
	}

	out := make([]report.Row, len(rows))
	for i, r := range rows {
		out[i] = r.row
	}
	return out, next, nil
}

// CountFailed returns the number of rows carrying an error.
func CountFailed(rows []report.Row) int {
	n := 0
	for _, r := range rows {
		if r.Error != "" {
			n++
		}
	}
	return n
}
