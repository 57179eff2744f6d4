package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// scannedThreshold is the chars-per-page figure below which a PDF is
// considered a scan without a text layer.
const scannedThreshold = 50

// Row notes.
const (
	NoteNoDate       = "no date on page 1"
	NoteSkipped      = "P&L skipped (non-DIPD/REXP)"
	NoteBlockMissing = "P&L block not found"
	NoteScanned      = "likely scanned (no text layer)"
)

// Result is everything extracted from one document.
type Result struct {
	Path       string
	Date       DateResult
	Issuer     Issuer
	Occurrence int
	Metrics    MetricSet
	Notes      []string
	Err        error
}

// Note joins the result's notes for the report's note column.
func (r Result) Note() string {
	return strings.Join(r.Notes, "; ")
}

// Extractor runs the date resolver and the issuer metric extractor against
// a document's text.
type Extractor struct {
	source TextSource
	logger *slog.Logger
}

// NewExtractor creates an Extractor reading text from source.
func NewExtractor(source TextSource, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{source: source, logger: logger}
}

// ExtractFile extracts the period-end date and metrics from the PDF at path.
// Failures are reported in Result.Err rather than returned, so one bad file
// never stops a batch.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (res Result) {
	res = Result{Path: path, Metrics: MetricSet{}}
	res.Date = DateResult{File: path, Method: MethodNoMatch}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction panicked", "path", path, "panic", r)
			res.Metrics = MetricSet{}
			res.Err = &ExtractionError{Code: ErrPanic, Message: "extraction panicked", Path: path, Cause: fmt.Errorf("%v", r)}
		}
	}()

	pages, err := e.source.Pages(ctx, path)
	if err != nil {
		res.Err = err
		return res
	}
	return e.ExtractPages(path, pages)
}

// ExtractPages runs extraction over already-read page text.
func (e *Extractor) ExtractPages(path string, pages []string) Result {
	res := Result{Path: path, Metrics: MetricSet{}}

	var firstPage string
	if len(pages) > 0 {
		firstPage = pages[0]
	}
	res.Date = ResolveDate(firstPage)
	res.Date.File = path
	if res.Date.Raw == "" {
		res.Notes = append(res.Notes, NoteNoDate)
	}

	full := strings.Join(pages, "\n")
	if isLikelyScanned(full, len(pages)) {
		res.Notes = append(res.Notes, NoteScanned)
	}

	profile, ok := SelectProfile(path)
	if !ok {
		res.Notes = append(res.Notes, NoteSkipped)
		return res
	}
	res.Issuer = profile.Issuer
	res.Occurrence = profile.OccurrenceIndex(res.Date.HeadlineKind)

	metrics, found := profile.ExtractDocument(full, res.Occurrence)
	if !found {
		res.Notes = append(res.Notes, NoteBlockMissing)
	}
	res.Metrics = metrics

	e.logger.Debug("extracted document",
		"path", path,
		"issuer", res.Issuer,
		"headline", res.Date.HeadlineKind,
		"method", res.Date.Method,
		"occurrence", res.Occurrence,
		"metrics", len(res.Metrics),
	)
	return res
}

// isLikelyScanned returns true if the document appears to be a scanned image
// (very little extractable text per page).
func isLikelyScanned(text string, pages int) bool {
	if pages <= 0 {
		pages = 1
	}
	return len(strings.TrimSpace(text))/pages < scannedThreshold
}
