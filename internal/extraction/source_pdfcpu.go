package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFCPUSource reads text by decoding page content streams with pdfcpu. It
// copes with some files the default reader rejects, at the cost of losing
// font-encoding awareness.
type PDFCPUSource struct{}

// NewPDFCPUSource creates the alternate PDF text source.
func NewPDFCPUSource() *PDFCPUSource { return &PDFCPUSource{} }

// Pages implements TextSource.
func (s *PDFCPUSource) Pages(ctx context.Context, path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &ExtractionError{Code: ErrPanic, Message: "pdfcpu panicked", Path: path, Cause: fmt.Errorf("%v", r)}
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, &ExtractionError{Code: ErrUnreadableDocument, Message: "open pdf", Path: path, Cause: err}
	}
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, &ExtractionError{Code: ErrUnreadableDocument, Message: "pdfcpu read", Path: path, Cause: err}
	}

	if pdfCtx.PageCount == 0 {
		return nil, &ExtractionError{Code: ErrNoText, Message: "document has no pages", Path: path}
	}
	pages = make([]string, pdfCtx.PageCount)
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages[i] = contentStreamText(pdfCtx, i+1)
	}
	return pages, nil
}

func contentStreamText(pdfCtx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return textFromStream(data)
}

var (
	// pdfStringRe matches PDF string literals in parentheses: (text here)
	pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)
	// textOpRe matches text-showing and line-moving operators.
	textOpRe = regexp.MustCompile(`\[((?:\\.|[^\\\]])*)\]\s*TJ|\(((?:\\.|[^\\)])*)\)\s*(?:Tj|'|")|T\*|\bT[dD]\b|\bET\b`)
)

// textFromStream walks content stream operators. Text-showing operators emit
// their strings; line-moving operators emit a newline so that statement rows
// stay on their own lines.
func textFromStream(data []byte) string {
	var sb strings.Builder
	for _, m := range textOpRe.FindAllSubmatch(data, -1) {
		switch {
		case m[1] != nil:
			for _, lit := range pdfStringRe.FindAllSubmatch(m[1], -1) {
				sb.WriteString(decodePDFString(lit[1]))
			}
			sb.WriteByte(' ')
		case m[2] != nil:
			if bytes.HasSuffix(m[0], []byte("'")) || bytes.HasSuffix(m[0], []byte(`"`)) {
				sb.WriteByte('\n')
			}
			sb.WriteString(decodePDFString(m[2]))
			sb.WriteByte(' ')
		default:
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSpace(sb.String())
}

// decodePDFString handles PDF escape sequences, including octal escapes.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			val := int(raw[i] - '0')
			for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}
