package extraction

// Metric names one profit-and-loss line item.
type Metric string

// Reported line items.
const (
	Revenue                Metric = "Revenue"
	COGS                   Metric = "COGS"
	GrossProfit            Metric = "GrossProfit"
	AdministrativeExpenses Metric = "AdministrativeExpenses"
	DistributionCosts      Metric = "DistributionCosts"
	OtherIncomeAndGains    Metric = "OtherIncomeAndGains"
	OperatingExpenses      Metric = "OperatingExpenses"
	OperatingIncome        Metric = "OperatingIncome"
	NetIncome              Metric = "NetIncome"
)

// OtherOperatingCosts is a cost component some issuers break out. It feeds
// OperatingExpenses but is not reported on its own.
const OtherOperatingCosts Metric = "OtherOperatingCosts"

// ReportedMetrics is the closed set of line items a MetricSet may carry.
var ReportedMetrics = []Metric{
	Revenue, COGS, GrossProfit, AdministrativeExpenses, DistributionCosts,
	OtherIncomeAndGains, OperatingExpenses, OperatingIncome, NetIncome,
}

// MetricSet holds the line items found for one document. A missing key means
// the value is absent, which is distinct from zero.
type MetricSet map[Metric]int64

// Get returns the value for m and whether it is present.
func (s MetricSet) Get(m Metric) (int64, bool) {
	v, ok := s[m]
	return v, ok
}

// Ptr returns a pointer to the value for m, or nil when absent.
func (s MetricSet) Ptr(m Metric) *int64 {
	v, ok := s[m]
	if !ok {
		return nil
	}
	return &v
}
