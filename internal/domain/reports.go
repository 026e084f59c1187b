package domain

import "time"

// ============================================================
// Report filters & views
// ============================================================

// ReportFilter narrows a view to a branch subset and an inclusive date range.
// Zero values mean "no restriction".
type ReportFilter struct {
	Branches    []string    `json:"branches,omitempty"`
	From        time.Time   `json:"from,omitempty"`
	To          time.Time   `json:"to,omitempty"`
	Granularity Granularity `json:"granularity"`
}

// Overview is returned by GET /v1/overview.
type Overview struct {
	Filter   ReportFilter    `json:"filter"`
	KPIs     OverviewKPIs    `json:"kpis"`
	Branches []BranchSummary `json:"branches"`
	Series   []PeriodBucket  `json:"series"`
	Options  []BranchOption  `json:"branch_options"`
}

// OverviewKPIs are the headline totals of the overview.
type OverviewKPIs struct {
	Invoices  int     `json:"invoices"`
	Sales     float64 `json:"sales"`
	Cost      float64 `json:"cost"`
	Profit    float64 `json:"profit"`
	ProfitPct float64 `json:"profit_pct"`
	Estimated bool    `json:"estimated,omitempty"`
}

// BranchSummary is the per-branch sales/profit comparison.
type BranchSummary struct {
	BranchID  string  `json:"branch_id"`
	Label     string  `json:"label"`
	Sales     float64 `json:"sales"`
	Profit    float64 `json:"profit"`
	ProfitPct float64 `json:"profit_pct"`
	Invoices  int     `json:"invoices"`
}

// BranchOption is one entry of the branch selector.
type BranchOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Period is a labelled inclusive date range.
type Period struct {
	Label       string      `json:"label"`
	From        time.Time   `json:"from"`
	To          time.Time   `json:"to"`
	Granularity Granularity `json:"granularity"`
}

// Comparison is returned by GET /v1/compare.
type Comparison struct {
	A    Period          `json:"period_a"`
	B    Period          `json:"period_b"`
	Rows []ComparisonRow `json:"rows"`
}

// AlertReport is returned by GET /v1/alerts.
type AlertReport struct {
	Current  Period  `json:"current"`
	Previous Period  `json:"previous"`
	Alerts   []Alert `json:"alerts"`
}

// ForecastReport is returned by GET /v1/forecast.
type ForecastReport struct {
	Reference  Period   `json:"reference"`
	Latest     Period   `json:"latest"`
	SubPeriods int      `json:"sub_periods"`
	Forecast   Forecast `json:"forecast"`
}
