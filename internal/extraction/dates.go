package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// HeadlineKind is the period a report headline says it covers.
type HeadlineKind string

const (
	HeadlineUnknown HeadlineKind = ""
	HeadlineQuarter HeadlineKind = "QUARTER"
	HeadlineYear    HeadlineKind = "YEAR"
)

// Method tags recorded on every DateResult.
const (
	MethodTextDirect    = "text-direct"
	MethodTextNumeric   = "text-numeric"
	MethodTextProximity = "text-proximity"
	MethodNoMatch       = "no-match"
)

// endedWindow is how far back (in characters) the proximity strategy looks for "ENDED".
const endedWindow = 80

// DateResult is the outcome of resolving a statement's period-end date.
// Raw is empty when nothing matched, and Date is zero whenever Raw is empty.
type DateResult struct {
	File         string
	HeadlineKind HeadlineKind
	Raw          string
	Date         time.Time
	Method       string
	Note         string
}

// ISODate returns the resolved date as YYYY-MM-DD, or "" when unresolved.
func (r DateResult) ISODate() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format("2006-01-02")
}

var months = map[string]time.Month{
	"JANUARY": time.January, "FEBRUARY": time.February, "MARCH": time.March,
	"APRIL": time.April, "MAY": time.May, "JUNE": time.June,
	"JULY": time.July, "AUGUST": time.August, "SEPTEMBER": time.September,
	"SEPT": time.September, "OCTOBER": time.October, "NOVEMBER": time.November,
	"DECEMBER": time.December,
	// three-letter forms
	"JAN": time.January, "FEB": time.February, "MAR": time.March, "APR": time.April,
	"JUN": time.June, "JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

var (
	headlineRe    = regexp.MustCompile(`(?i)INTERIM\s+REPORT\s+FOR\s+THE\s+(QUARTER|YEAR)\s+ENDED`)
	endedLongRe   = regexp.MustCompile(`(?i)\bENDED\b[\s:,-]*(\d{1,2}(?:ST|ND|RD|TH)?\s+[A-Z]{3,}\s+\d{4})`)
	endedNumRe    = regexp.MustCompile(`(?i)\bENDED\b[\s:,-]*(\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`)
	numericDateRe = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{2,4})$`)
	ordinalRe     = regexp.MustCompile(`(?i)(ST|ND|RD|TH)$`)
	longDateRe    = regexp.MustCompile(
		`(?i)\d{1,2}(?:ST|ND|RD|TH)?\s+(?:JANUARY|FEBRUARY|MARCH|APRIL|MAY|JUNE|` +
			`JULY|AUGUST|SEPTEMBER|SEPT|OCTOBER|NOVEMBER|DECEMBER)\s+\d{4}`,
	)
)

// dateStrategy looks for a period-end date candidate. ok is false when the
// strategy found nothing usable, in which case the next strategy is tried.
type dateStrategy struct {
	method string
	find   func(text string) (raw string, date time.Time, ok bool)
}

// dateStrategies are tried in order; the first success wins.
var dateStrategies = []dateStrategy{
	{MethodTextDirect, findEndedLongDate},
	{MethodTextNumeric, findEndedNumericDate},
	{MethodTextProximity, findProximityDate},
}

// ResolveDate finds the period-end date in first-page text. Later pages are
// never consulted: the period end is printed in the report headline.
func ResolveDate(firstPage string) DateResult {
	text := Normalize(firstPage)
	res := DateResult{
		HeadlineKind: DetectHeadline(text),
		Method:       MethodNoMatch,
		Note:         NoteNoDate,
	}
	if text == "" {
		return res
	}
	for _, s := range dateStrategies {
		if raw, date, ok := s.find(text); ok {
			res.Raw = raw
			res.Date = date
			res.Method = s.method
			res.Note = ""
			return res
		}
	}
	return res
}

// DetectHeadline reports whether the text is captioned as an interim report
// for a quarter or a year.
func DetectHeadline(text string) HeadlineKind {
	m := headlineRe.FindStringSubmatch(text)
	if m == nil {
		return HeadlineUnknown
	}
	return HeadlineKind(strings.ToUpper(m[1]))
}

func findEndedLongDate(text string) (string, time.Time, bool) {
	m := endedLongRe.FindStringSubmatch(text)
	if m == nil {
		return "", time.Time{}, false
	}
	raw := strings.TrimSpace(m[1])
	d, ok := parseLongDate(raw)
	return raw, d, ok
}

func findEndedNumericDate(text string) (string, time.Time, bool) {
	m := endedNumRe.FindStringSubmatch(text)
	if m == nil {
		return "", time.Time{}, false
	}
	raw := strings.TrimSpace(m[1])
	d, ok := parseNumericDate(raw)
	return raw, d, ok
}

func findProximityDate(text string) (string, time.Time, bool) {
	for _, loc := range longDateRe.FindAllStringIndex(text, -1) {
		window := strings.ToUpper(lastRunes(text[:loc[0]], endedWindow))
		if !strings.Contains(window, "ENDED") {
			continue
		}
		raw := strings.TrimSpace(text[loc[0]:loc[1]])
		if d, ok := parseLongDate(raw); ok {
			return raw, d, true
		}
	}
	return "", time.Time{}, false
}

// parseLongDate parses "25TH MARCH 2024"-style text.
func parseLongDate(text string) (time.Time, bool) {
	parts := strings.Fields(strings.ToUpper(Normalize(text)))
	if len(parts) < 3 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(ordinalRe.ReplaceAllString(parts[0], ""))
	if err != nil {
		return time.Time{}, false
	}
	mon, ok := months[parts[1]]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return time.Time{}, false
	}
	return calendarDate(year, mon, day)
}

// parseNumericDate parses D/M/Y with '.', '/' or '-' separators. Two-digit
// years below 50 are 20xx, the rest 19xx.
func parseNumericDate(text string) (time.Time, bool) {
	m := numericDateRe.FindStringSubmatch(Normalize(text))
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	mon, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if year < 100 {
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
	}
	return calendarDate(year, time.Month(mon), day)
}

// calendarDate rejects dates that time.Date would silently roll over,
// such as 31 April or month 13.
func calendarDate(year int, mon time.Month, day int) (time.Time, bool) {
	if mon < time.January || mon > time.December || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, mon, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != mon || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}

// lastRunes returns at most n trailing runes of s.
func lastRunes(s string, n int) string {
	i := len(s)
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}
