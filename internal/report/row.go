// Package report turns extraction results into report rows and writes them to
// output tables.
package report

import (
	"path/filepath"
	"strconv"

	"github.com/castlemilk/cse-statements/internal/extraction"
)

// Columns is the fixed column order of the output table.
var Columns = []string{
	"file_name",
	"file_path",
	"headline_kind",
	"quarter_end_raw",
	"quarter_end",
	"Revenue",
	"COGS",
	"GrossProfit",
	"OperatingExpenses",
	"OperatingIncome",
	"NetIncome",
	"AdministrativeExpenses",
	"DistributionCosts",
	"OtherIncomeAndGains",
	"note",
	"error",
}

// metricColumns maps metric columns, in table order, to their metric.
var metricColumns = []extraction.Metric{
	extraction.Revenue,
	extraction.COGS,
	extraction.GrossProfit,
	extraction.OperatingExpenses,
	extraction.OperatingIncome,
	extraction.NetIncome,
	extraction.AdministrativeExpenses,
	extraction.DistributionCosts,
	extraction.OtherIncomeAndGains,
}

// Row is one output table row. Nil metric fields are absent values and are
// written as empty cells.
type Row struct {
	FileName      string `json:"file_name" firestore:"file_name"`
	FilePath      string `json:"file_path" firestore:"file_path"`
	HeadlineKind  string `json:"headline_kind" firestore:"headline_kind"`
	QuarterEndRaw string `json:"quarter_end_raw" firestore:"quarter_end_raw"`
	QuarterEnd    string `json:"quarter_end" firestore:"quarter_end"`

	Revenue                *int64 `json:"Revenue" firestore:"Revenue"`
	COGS                   *int64 `json:"COGS" firestore:"COGS"`
	GrossProfit            *int64 `json:"GrossProfit" firestore:"GrossProfit"`
	OperatingExpenses      *int64 `json:"OperatingExpenses" firestore:"OperatingExpenses"`
	OperatingIncome        *int64 `json:"OperatingIncome" firestore:"OperatingIncome"`
	NetIncome              *int64 `json:"NetIncome" firestore:"NetIncome"`
	AdministrativeExpenses *int64 `json:"AdministrativeExpenses" firestore:"AdministrativeExpenses"`
	DistributionCosts      *int64 `json:"DistributionCosts" firestore:"DistributionCosts"`
	OtherIncomeAndGains    *int64 `json:"OtherIncomeAndGains" firestore:"OtherIncomeAndGains"`

	Note  string `json:"note" firestore:"note"`
	Error string `json:"error" firestore:"error"`

	// Not written to the table.
	Issuer     string `json:"issuer,omitempty" firestore:"issuer"`
	DateMethod string `json:"date_method,omitempty" firestore:"date_method"`
}

// FromResult builds the row for one extracted file. A failed extraction keeps
// the file identity and the error, with every metric null.
func FromResult(res extraction.Result) Row {
	row := Row{
		FileName:      filepath.Base(res.Path),
		FilePath:      res.Path,
		HeadlineKind:  string(res.Date.HeadlineKind),
		QuarterEndRaw: res.Date.Raw,
		QuarterEnd:    res.Date.ISODate(),
		Note:          res.Note(),
		Issuer:        string(res.Issuer),
		DateMethod:    res.Date.Method,
	}
	if res.Err != nil {
		row.Error = extraction.RowError(res.Err)
		return row
	}

	m := res.Metrics
	row.Revenue = m.Ptr(extraction.Revenue)
	row.COGS = m.Ptr(extraction.COGS)
	row.GrossProfit = m.Ptr(extraction.GrossProfit)
	row.OperatingExpenses = m.Ptr(extraction.OperatingExpenses)
	row.OperatingIncome = m.Ptr(extraction.OperatingIncome)
	row.NetIncome = m.Ptr(extraction.NetIncome)
	row.AdministrativeExpenses = m.Ptr(extraction.AdministrativeExpenses)
	row.DistributionCosts = m.Ptr(extraction.DistributionCosts)
	row.OtherIncomeAndGains = m.Ptr(extraction.OtherIncomeAndGains)
	return row
}

// metrics returns the metric fields in column order.
func (r Row) metrics() []*int64 {
	return []*int64{
		r.Revenue,
		r.COGS,
		r.GrossProfit,
		r.OperatingExpenses,
		r.OperatingIncome,
		r.NetIncome,
		r.AdministrativeExpenses,
		r.DistributionCosts,
		r.OtherIncomeAndGains,
	}
}

// Metric returns the value of m, or nil when absent.
func (r Row) Metric(m extraction.Metric) *int64 {
	for i, mc := range metricColumns {
		if mc == m {
			return r.metrics()[i]
		}
	}
	return nil
}

// Values renders the row as table cells in Columns order.
func (r Row) Values() []string {
	out := make([]string, 0, len(Columns))
	out = append(out, r.FileName, r.FilePath, r.HeadlineKind, r.QuarterEndRaw, r.QuarterEnd)
	for _, v := range r.metrics() {
		out = append(out, formatAmount(v))
	}
	return append(out, r.Note, r.Error)
}

func formatAmount(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
