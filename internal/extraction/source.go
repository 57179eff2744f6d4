package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"
)

//go:generate mockgen -source=source.go -destination=source_mock.go -package=extraction

// TextSource returns the text layer of a document, one string per page in
// page order. A page without extractable text is an empty string, not an error.
type TextSource interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

// LedongthucSource reads PDF text with github.com/ledongthuc/pdf.
type LedongthucSource struct{}

// NewLedongthucSource creates the default PDF text source.
func NewLedongthucSource() *LedongthucSource { return &LedongthucSource{} }

// Pages extracts plain text per page. The file is closed on every path and a
// panic inside the PDF library is returned as an ErrPanic error.
func (s *LedongthucSource) Pages(ctx context.Context, path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &ExtractionError{Code: ErrPanic, Message: "pdf reader panicked", Path: path, Cause: fmt.Errorf("%v", r)}
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &ExtractionError{Code: ErrUnreadableDocument, Message: "open pdf", Path: path, Cause: err}
	}
	defer f.Close()

	if reader.NumPage() == 0 {
		return nil, &ExtractionError{Code: ErrNoText, Message: "document has no pages", Path: path}
	}
	pages = make([]string, reader.NumPage())
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i] = text
	}
	return pages, nil
}

// FallbackSource re-reads a document with a second engine when the primary
// engine produces no first-page text or fails outright.
type FallbackSource struct {
	Primary  TextSource
	Fallback TextSource
	Logger   *slog.Logger
}

// Pages implements TextSource.
func (s *FallbackSource) Pages(ctx context.Context, path string) ([]string, error) {
	pages, err := s.Primary.Pages(ctx, path)
	if err == nil && len(pages) > 0 && Normalize(pages[0]) != "" {
		return pages, nil
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("primary text source empty, trying fallback", "path", path, "err", err)

	alt, altErr := s.Fallback.Pages(ctx, path)
	if altErr != nil {
		if err != nil {
			return nil, err
		}
		return pages, nil
	}
	return alt, nil
}
