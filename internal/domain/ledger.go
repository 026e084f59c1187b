package domain

import (
	"strings"
	"time"
)

// ============================================================
// Ledger: line items, invoices and period buckets
// ============================================================

// Granularity is the time-bucket size used by rollups.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// Valid reports whether g is one of the supported granularities.
func (g Granularity) Valid() bool {
	switch g {
	case Day, Week, Month:
		return true
	}
	return false
}

// LineItem is one normalized row of a source file.
// BranchID is empty when no branch could be extracted from the label;
// such rows are kept for diagnostics but never aggregated.
type LineItem struct {
	Source        string    `json:"source"`
	Block         string    `json:"block,omitempty"` // sheet name for workbooks
	Row           int       `json:"row"`             // 1-based data row within the source block
	Date          time.Time `json:"date"`
	BranchID      string    `json:"branch_id,omitempty"`
	Marker        string    `json:"marker,omitempty"` // raw invoice number, non-blank only on the first line of an invoice
	NewInvoice    bool      `json:"new_invoice,omitempty"` // opens an invoice whose marked first row was dropped
	Quantity      float64   `json:"quantity"`
	UnitCost      float64   `json:"unit_cost"`
	Total         float64   `json:"total"`
	Note          string    `json:"note,omitempty"`
	Preaggregated bool      `json:"preaggregated,omitempty"` // daily total, no invoice identity
	CostEstimated bool      `json:"cost_estimated,omitempty"`
}

// StartsInvoice reports whether the line opens a new invoice.
func (l LineItem) StartsInvoice() bool {
	return l.NewInvoice || strings.TrimSpace(l.Marker) != ""
}

// LineCost is quantity × unit cost.
func (l LineItem) LineCost() float64 {
	return l.Quantity * l.UnitCost
}

// Attributable reports whether the line can be assigned to a branch.
func (l LineItem) Attributable() bool {
	return l.BranchID != ""
}

// SegmentedLine is a LineItem tagged with its synthetic invoice id.
type SegmentedLine struct {
	LineItem
	InvoiceID int `json:"invoice_id"`
}

// Invoice is a contiguous run of line items sharing one invoice id and branch.
type Invoice struct {
	ID             int       `json:"invoice_id"`
	BranchID       string    `json:"branch_id"`
	Date           time.Time `json:"date"`
	Note           string    `json:"note,omitempty"`
	Sales          float64   `json:"total_sales"`
	Cost           float64   `json:"total_cost"`
	Profit         float64   `json:"total_profit"`
	Lines          int       `json:"lines"`
	Unassigned     bool      `json:"unassigned,omitempty"`      // id 0: lines seen before the first invoice number
	BranchConflict bool      `json:"branch_conflict,omitempty"` // same id observed under more than one branch
	Estimated      bool      `json:"estimated,omitempty"`
}

// PeriodBucket aggregates one branch over one time bucket.
type PeriodBucket struct {
	BranchID     string    `json:"branch_id"`
	Key          string    `json:"key"`
	Start        time.Time `json:"start"`
	Sales        float64   `json:"sales"`
	Cost         float64   `json:"cost"`
	Profit       float64   `json:"profit"`
	ProfitPct    float64   `json:"profit_pct"`
	InvoiceCount int       `json:"invoice_count"`
	Estimated    bool      `json:"estimated,omitempty"`
}

// ============================================================
// Comparison, alerts and forecast
// ============================================================

// MetricChange holds one metric on both sides of a comparison.
// Defined is false when the baseline is zero; ChangePct is then 0.
type MetricChange struct {
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	ChangePct float64 `json:"change_pct"`
	Defined   bool    `json:"defined"`
}

// ComparisonRow is one branch present on both sides of a comparison.
type ComparisonRow struct {
	BranchID string       `json:"branch_id"`
	Sales    MetricChange `json:"sales"`
	Cost     MetricChange `json:"cost"`
	Profit   MetricChange `json:"profit"`
	Invoices MetricChange `json:"invoices"`
}

// Severity classifies an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities, most severe first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Alert kinds.
const (
	AlertSalesDrop = "sales_drop"
	AlertLowMargin = "low_margin"
	AlertLosses    = "losses"
	AlertAllNormal = "all_normal"
)

// Alert is a classified finding. Alerts are produced per request and never stored.
type Alert struct {
	BranchID string   `json:"branch_id,omitempty"`
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Value    float64  `json:"value"`
}

// Trend directions.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// ForecastRow is the naive projection for one branch.
type ForecastRow struct {
	BranchID        string  `json:"branch_id"`
	AvgSales        float64 `json:"avg_sales"`
	AvgProfit       float64 `json:"avg_profit"`
	ProjectedSales  float64 `json:"projected_sales"`
	ProjectedProfit float64 `json:"projected_profit"`
	LatestSales     float64 `json:"latest_sales"`
	LatestProfit    float64 `json:"latest_profit"`
	TrendPct        float64 `json:"trend_pct"`
	Direction       string  `json:"direction"`
}

// Forecast bundles per-branch projections with the expected leader.
type Forecast struct {
	Rows     []ForecastRow `json:"rows"`
	LeaderID string        `json:"leader_branch_id,omitempty"`
}

// ============================================================
// Load diagnostics
// ============================================================

// Block is the raw cell text of one worksheet or one delimited file, rows in
// source order.
type Block struct {
	Name string
	Rows [][]string
}

// LoadReport tallies what happened to the rows of one source.
type LoadReport struct {
	Source          string `json:"source"`
	Kind            string `json:"kind"`
	Blocks          int    `json:"blocks"`
	BlocksSkipped   int    `json:"blocks_skipped"`
	RowsRead        int    `json:"rows_read"`
	Accepted        int    `json:"accepted"`
	DroppedNoDate   int    `json:"dropped_no_date"`
	DroppedCutoff   int    `json:"dropped_before_cutoff"`
	Unattributable  int    `json:"unattributable"`
	DatesCorrected  int    `json:"dates_corrected"`
	CostsEstimated  int    `json:"costs_estimated"`
	Invoices        int    `json:"invoices"`
	BranchConflicts int    `json:"branch_conflicts"`
}
