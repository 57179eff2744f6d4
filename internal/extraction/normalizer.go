// Package extraction pulls period-end dates and profit-and-loss line items out of
// the text layer of quarterly and annual report PDFs.
package extraction

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const nbsp = "\u00a0"

var (
	// Patterns for canonicalising extracted text. RE2's \s is ASCII only, so
	// Unicode separators, vertical tab and NEL are listed explicitly.
	whitespaceRun = regexp.MustCompile(`[\s\p{Z}\v\x{85}]+`)
	horizontalRun = regexp.MustCompile(`[ \t]+`)
)

// Normalize canonicalises extracted page text: NFKC composition, non-breaking
// spaces replaced, whitespace runs collapsed to a single space, trimmed.
// Normalize is total and idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, nbsp, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// normalizeBlock prepares a statement block for label matching. Newlines are
// preserved because some labels are anchored to the start of a line.
func normalizeBlock(s string) string {
	s = strings.ReplaceAll(s, nbsp, " ")
	return horizontalRun.ReplaceAllString(s, " ")
}

// foldUpper upper-cases s for case-insensitive substring matching. Casers
// carry state, so one is built per call.
func foldUpper(s string) string {
	return cases.Upper(language.Und).String(s)
}
