package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	gcsstorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/castlemilk/cse-statements/internal/retry"
)

// objectWriter uploads one object. It is satisfied by the Cloud Storage
// client and by test doubles.
type objectWriter interface {
	WriteObject(ctx context.Context, bucket, object string, data []byte) error
}

// GCSTable writes rows as a CSV object in a Cloud Storage bucket. Each Write
// replaces the object.
type GCSTable struct {
	Bucket string
	Object string
	Retry  retry.Config

	writer objectWriter
	closer io.Closer
}

// NewGCSTable creates a table for a gs://bucket/object URL.
func NewGCSTable(ctx context.Context, url string, opts ...option.ClientOption) (*GCSTable, error) {
	bucket, object, err := ParseGCSURL(url)
	if err != nil {
		return nil, err
	}
	client, err := gcsstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSTable{
		Bucket: bucket,
		Object: object,
		Retry:  retry.DefaultStorageConfig,
		writer: &storageWriter{client: client},
		closer: client,
	}, nil
}

// ParseGCSURL splits gs://bucket/object.
func ParseGCSURL(url string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(url, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URL: %q", url)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs:// URL needs a bucket and an object: %q", url)
	}
	return bucket, object, nil
}

// Write implements Table.
func (t *GCSTable) Write(ctx context.Context, rows []Row) error {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, rows); err != nil {
		return err
	}
	_, err := retry.Do(ctx, t.Retry, func(ctx context.Context) (struct{}, error) {
		err := t.writer.WriteObject(ctx, t.Bucket, t.Object, buf.Bytes())
		if err != nil && !isTransient(err) {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("write gs://%s/%s: %w", t.Bucket, t.Object, err)
	}
	return nil
}

// Close releases the storage client.
func (t *GCSTable) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

type storageWriter struct {
	client *gcsstorage.Client
}

func (s *storageWriter) WriteObject(ctx context.Context, bucket, object string, data []byte) error {
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/csv; charset=utf-8"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// isTransient reports whether a storage error is worth retrying.
func isTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
