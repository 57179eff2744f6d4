package extraction

import (
	"regexp"
	"strings"
)

// Issuer identifies a reporting entity with a known statement layout.
type Issuer string

const (
	IssuerDIPD Issuer = "DIPD"
	IssuerREXP Issuer = "REXP"
)

// Profile is the label dictionary and derived-total rule for one issuer.
// The set of profiles is closed; see Profiles.
type Profile struct {
	Issuer Issuer
	// Start marks the beginning of the profit-and-loss statement.
	Start *regexp.Regexp
	// Labels anchor the amount scan for each line item.
	Labels map[Metric]*regexp.Regexp
	// Costs are summed into OperatingExpenses.
	Costs []Metric

	quarterIndex int
	defaultIndex int
}

var netIncomeRe = regexp.MustCompile(`(?i)Profit\s+for\s+the\s+period|Profit\s*/\s*\(loss\)\s+for\s+the\s+period`)

// Profiles lists every supported issuer, in selection priority order.
var Profiles = []Profile{
	{
		Issuer: IssuerDIPD,
		Start:  regexp.MustCompile(`(?i)STATEMENT\s+OF\s+PROFIT\s+OR\s+LOSS`),
		Labels: map[Metric]*regexp.Regexp{
			Revenue:                regexp.MustCompile(`(?i)Revenue\s+from\s+contracts\s+with\s+customers`),
			COGS:                   regexp.MustCompile(`(?i)Cost\s+of\s+sales`),
			GrossProfit:            regexp.MustCompile(`(?i)Gross\s+profit`),
			DistributionCosts:      regexp.MustCompile(`(?i)Distribution\s+costs`),
			AdministrativeExpenses: regexp.MustCompile(`(?i)Administrative\s+expenses`),
			OtherIncomeAndGains:    regexp.MustCompile(`(?i)Other\s+income\s+and\s+gains|Other\s+income`),
			NetIncome:              netIncomeRe,
		},
		Costs: []Metric{DistributionCosts, AdministrativeExpenses},
		// Annual filings print the current quarter and its comparative
		// before the cumulative current-year column.
		quarterIndex: 1,
		defaultIndex: 3,
	},
	{
		Issuer: IssuerREXP,
		Start:  regexp.MustCompile(`(?i)CONSOLIDATED\s+INCOME\s+STATEMENT`),
		Labels: map[Metric]*regexp.Regexp{
			Revenue:                regexp.MustCompile(`(?im)^Revenue\b`),
			COGS:                   regexp.MustCompile(`(?im)^\s*Cost\b`),
			GrossProfit:            regexp.MustCompile(`(?i)Gross\s+profit`),
			DistributionCosts:      regexp.MustCompile(`(?i)Distribution\s+Costs`),
			AdministrativeExpenses: regexp.MustCompile(`(?i)Administrative\s+Expenses`),
			OtherOperatingCosts:    regexp.MustCompile(`(?i)Other\s+operating\s+(?:costs|expenses)`),
			OtherIncomeAndGains:    regexp.MustCompile(`(?i)Other\s+operating\s+income`),
			NetIncome:              netIncomeRe,
		},
		Costs:        []Metric{DistributionCosts, AdministrativeExpenses, OtherOperatingCosts},
		quarterIndex: 1,
		defaultIndex: 1,
	},
}

// SelectProfile picks the profile whose issuer code appears in name,
// ignoring case.
func SelectProfile(name string) (Profile, bool) {
	up := foldUpper(name)
	for _, p := range Profiles {
		if strings.Contains(up, string(p.Issuer)) {
			return p, true
		}
	}
	return Profile{}, false
}

// OccurrenceIndex is the position of the current-period figure among the
// amounts following a label, for a report with the given headline.
func (p Profile) OccurrenceIndex(kind HeadlineKind) int {
	if kind == HeadlineQuarter {
		return p.quarterIndex
	}
	return p.defaultIndex
}

// ExtractDocument locates the profit-and-loss block in the full document text
// and extracts metrics from it. found is false when the block is missing.
func (p Profile) ExtractDocument(text string, n int) (MetricSet, bool) {
	block, found := LocateBlock(text, p.Start)
	if !found {
		return MetricSet{}, false
	}
	return p.Extract(block, n), true
}

// Extract reads the nth amount after each label in block and derives
// OperatingExpenses and OperatingIncome.
func (p Profile) Extract(block string, n int) MetricSet {
	found := make(MetricSet, len(p.Labels))
	for m, re := range p.Labels {
		if v, ok := NthAmountAfter(re, block, n); ok {
			found[m] = v
		}
	}

	out := make(MetricSet, len(ReportedMetrics))
	for _, m := range ReportedMetrics {
		if v, ok := found[m]; ok {
			out[m] = v
		}
	}

	var opex int64
	anyCost := false
	for _, m := range p.Costs {
		if v, ok := found[m]; ok {
			opex += v
			anyCost = true
		}
	}
	if anyCost {
		out[OperatingExpenses] = opex
	}

	// Never derived from a zero gross profit substitute.
	if gross, ok := found[GrossProfit]; ok {
		out[OperatingIncome] = gross + found[OtherIncomeAndGains] - opex
	}
	return out
}
