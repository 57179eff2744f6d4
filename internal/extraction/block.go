package extraction

import "regexp"

// financialPositionRe marks the statement that follows the profit-and-loss
// statement. A stray word between STATEMENT and OF is tolerated.
var financialPositionRe = regexp.MustCompile(`(?i)STATEMENT\S*(?:\s+\S+)?\s+OF\s+FINANCIAL\s+POSITION`)

// LocateBlock returns the text between the first match of start and the next
// statement-of-financial-position heading, or the end of the document when no
// such heading follows. found is false when start never matches.
func LocateBlock(text string, start *regexp.Regexp) (block string, found bool) {
	loc := start.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := text[loc[1]:]
	if end := financialPositionRe.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return normalizeBlock(rest), true
}
