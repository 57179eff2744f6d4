package extraction

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// amountTokenRe matches accounting-formatted amounts. At least one thousands
// separator is required so page and note numbers are never taken as figures.
var amountTokenRe = regexp.MustCompile(`\(?\d{1,3}(?:,\d{3})+(?:\.\d+)?\)?`)

// ParseAmount converts an accounting token such as "1,234" or "(56,789.50)"
// to a signed integer, rounding half to even. Parenthesised tokens are
// negative. ok is false for anything that does not parse as a number.
func ParseAmount(tok string) (int64, bool) {
	tok = strings.TrimSpace(tok)
	neg := strings.HasPrefix(tok, "(") && strings.HasSuffix(tok, ")")
	if neg {
		tok = tok[1 : len(tok)-1]
	}
	tok = strings.ReplaceAll(tok, ",", "")

	f, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.RoundToEven(f)
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	n := int64(f)
	if neg {
		n = -n
	}
	return n, true
}

// FindAmounts returns every amount token in text, in order of appearance.
func FindAmounts(text string) []string {
	return amountTokenRe.FindAllString(text, -1)
}

// NthAmountAfter finds the first match of label in block and returns the
// value of the nth (1-based) amount token after it. ok is false when the
// label is missing, fewer than n tokens follow it, or the token is malformed.
func NthAmountAfter(label *regexp.Regexp, block string, n int) (int64, bool) {
	if n < 1 {
		return 0, false
	}
	loc := label.FindStringIndex(block)
	if loc == nil {
		return 0, false
	}
	tokens := amountTokenRe.FindAllString(block[loc[1]:], n)
	if len(tokens) < n {
		return 0, false
	}
	return ParseAmount(tokens[n-1])
}
