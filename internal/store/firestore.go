package store

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/castlemilk/cse-statements/internal/report"
	"github.com/castlemilk/cse-statements/internal/retry"
)

// Firestore layout:
//
//	runs/{runID}                 Run
//	runs/{runID}/reports/{pos}   report.Row, pos zero-padded
//	meta/latest                  {run_id}
const (
	runsCollection    = "runs"
	reportsCollection = "reports"
	metaCollection    = "meta"
	latestDoc         = "latest"
)

type latestPointer struct {
	RunID string `firestore:"run_id"`
}

// FirestoreStore implements the Store interface using Firestore
type FirestoreStore struct {
	client *firestore.Client
	retry  retry.Config
}

// NewFirestoreStore creates a new Firestore-backed store
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client: client,
		retry:  retry.DefaultStorageConfig,
	}
}

// Close closes the Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// SaveRun writes the run document and its rows, then moves the latest
// pointer. Readers never see a latest run with missing rows.
func (s *FirestoreStore) SaveRun(ctx context.Context, run Run, rows []report.Row) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	runRef := s.client.Collection(runsCollection).Doc(run.ID)

	if err := s.set(ctx, runRef, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	for i, r := range rows {
		r.Issuer = strings.ToUpper(r.Issuer)
		if err := s.set(ctx, runRef.Collection(reportsCollection).Doc(docID(i)), r); err != nil {
			return fmt.Errorf("failed to save report %s: %w", r.FilePath, err)
		}
	}
	latest := s.client.Collection(metaCollection).Doc(latestDoc)
	if err := s.set(ctx, latest, latestPointer{RunID: run.ID}); err != nil {
		return fmt.Errorf("failed to update latest run: %w", err)
	}
	return nil
}

func (s *FirestoreStore) set(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	_, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*firestore.WriteResult, error) {
		res, err := ref.Set(ctx, data)
		if err != nil && !retryableStatus(err) {
			return nil, retry.Permanent(err)
		}
		return res, err
	})
	return err
}

func (s *FirestoreStore) GetRun(ctx context.Context, runID string) (Run, error) {
	doc, err := s.client.Collection(runsCollection).Doc(runID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	var run Run
	if err := doc.DataTo(&run); err != nil {
		return Run{}, fmt.Errorf("failed to parse run: %w", err)
	}
	return run, nil
}

func (s *FirestoreStore) LatestRun(ctx context.Context) (Run, error) {
	doc, err := s.client.Collection(metaCollection).Doc(latestDoc).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get latest run: %w", err)
	}
	var ptr latestPointer
	if err := doc.DataTo(&ptr); err != nil {
		return Run{}, fmt.Errorf("failed to parse latest run: %w", err)
	}
	return s.GetRun(ctx, ptr.RunID)
}

func (s *FirestoreStore) ListReports(ctx context.Context, runID, issuer string, pageSize int32, pageToken string) ([]report.Row, string, error) {
	if runID == "" {
		run, err := s.LatestRun(ctx)
		if err != nil {
			return nil, "", err
		}
		runID = run.ID
	} else if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, "", err
	}

	query := s.client.Collection(runsCollection).Doc(runID).Collection(reportsCollection).Query
	if issuer != "" {
		query = query.Where("issuer", "==", strings.ToUpper(issuer))
	}
	query, err := s.applyCursorPagination(query, pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list reports: %w", err)
	}

	rows := make([]positionedRow, 0, len(docs))
	for _, doc := range docs {
		var pr positionedRow
		if _, err := fmt.Sscanf(doc.Ref.ID, "%d", &pr.pos); err != nil {
			return nil, "", fmt.Errorf("unexpected report id %q", doc.Ref.ID)
		}
		if err := doc.DataTo(&pr.row); err != nil {
			return nil, "", fmt.Errorf("failed to parse report: %w", err)
		}
		rows = append(rows, pr)
	}
	return paginate(rows, pageSize, "")
}

func (s *FirestoreStore) applyCursorPagination(query firestore.Query, pageSize int32, pageToken string) (firestore.Query, error) {
	query = query.OrderBy(firestore.DocumentID, firestore.Asc)

	if pageToken != "" {
		pos, err := DecodePageToken(pageToken)
		if err != nil {
			return query, err
		}
		query = query.StartAfter(docID(pos))
	}

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	query = query.Limit(int(pageSize) + 1) // +1 to detect next page
	return query, nil
}

// retryableStatus reports whether a Firestore error is transient.
func retryableStatus(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
		return true
	}
	return false
}
