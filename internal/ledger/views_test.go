package ledger_test

import (
	"testing"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/boddenberg/tireshop-analytics-go/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bucket(branch string, sales, cost float64) domain.PeriodBucket {
	return domain.PeriodBucket{
		BranchID:  branch,
		Sales:     sales,
		Cost:      cost,
		Profit:    sales - cost,
		ProfitPct: ledger.ProfitPct(sales-cost, sales),
	}
}

// ============================================================
// Comparator
// ============================================================

func TestCompare_Example(t *testing.T) {
	rows := ledger.Compare(
		[]domain.PeriodBucket{bucket("1", 1000, 0)},
		[]domain.PeriodBucket{bucket("1", 1200, 0)},
	)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].BranchID)
	assert.Equal(t, 20.0, rows[0].Sales.ChangePct)
	assert.True(t, rows[0].Sales.Defined)
}

func TestCompare_InnerJoinDropsMissingBranches(t *testing.T) {
	rows := ledger.Compare(
		[]domain.PeriodBucket{bucket("1", 100, 50), bucket("2", 100, 50)},
		[]domain.PeriodBucket{bucket("2", 90, 50), bucket("3", 500, 50)},
	)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].BranchID)
	assert.Equal(t, -10.0, rows[0].Sales.ChangePct)
	assert.Equal(t, -20.0, rows[0].Profit.ChangePct)
}

func TestCompare_EmptyJoin(t *testing.T) {
	rows := ledger.Compare(
		[]domain.PeriodBucket{bucket("1", 100, 50)},
		[]domain.PeriodBucket{bucket("2", 100, 50)},
	)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestCompare_ZeroBaselineIsUndefined(t *testing.T) {
	rows := ledger.Compare(
		[]domain.PeriodBucket{bucket("1", 0, 0)},
		[]domain.PeriodBucket{bucket("1", 300, 100)},
	)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Sales.Defined)
	assert.Equal(t, 0.0, rows[0].Sales.ChangePct)
}

func TestCompare_NegativeBaselineImprovementIsPositive(t *testing.T) {
	rows := ledger.Compare(
		[]domain.PeriodBucket{bucket("1", 100, 150)},
		[]domain.PeriodBucket{bucket("1", 100, 125)},
	)
	require.Len(t, rows, 1)
	assert.Equal(t, 50.0, rows[0].Profit.ChangePct)
}

func TestCompare_CollapsesBucketsPerBranch(t *testing.T) {
	a := []domain.PeriodBucket{bucket("1", 600, 0), bucket("1", 400, 0)}
	b := []domain.PeriodBucket{bucket("1", 1100, 0)}
	rows := ledger.Compare(a, b)
	require.Len(t, rows, 1)
	assert.Equal(t, 1000.0, rows[0].Sales.A)
	assert.Equal(t, 10.0, rows[0].Sales.ChangePct)
}

// ============================================================
// Alert evaluator
// ============================================================

func TestEvaluateAlerts_AllNormalIsSingleInfo(t *testing.T) {
	alerts := ledger.EvaluateAlerts(
		[]domain.PeriodBucket{bucket("1", 1000, 700), bucket("2", 500, 300)},
		[]domain.PeriodBucket{bucket("1", 900, 600), bucket("2", 500, 300)},
	)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.SeverityInfo, alerts[0].Severity)
	assert.Equal(t, domain.AlertAllNormal, alerts[0].Kind)
}

func TestEvaluateAlerts_EmptyInputIsAllNormal(t *testing.T) {
	alerts := ledger.EvaluateAlerts(nil, nil)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertAllNormal, alerts[0].Kind)
}

func TestEvaluateAlerts_Thresholds(t *testing.T) {
	tests := []struct {
		name     string
		current  domain.PeriodBucket
		previous domain.PeriodBucket
		kind     string
		severity domain.Severity
	}{
		{"sales drop critical", bucket("1", 70, 0), bucket("1", 100, 0), domain.AlertSalesDrop, domain.SeverityCritical},
		{"sales drop warning", bucket("1", 90, 0), bucket("1", 100, 0), domain.AlertSalesDrop, domain.SeverityWarning},
		{"margin critical", bucket("1", 100, 95), bucket("1", 100, 95), domain.AlertLowMargin, domain.SeverityCritical},
		{"margin warning", bucket("1", 100, 85), bucket("1", 100, 85), domain.AlertLowMargin, domain.SeverityWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := ledger.EvaluateAlerts([]domain.PeriodBucket{tt.current}, []domain.PeriodBucket{tt.previous})
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.kind, alerts[0].Kind)
			assert.Equal(t, tt.severity, alerts[0].Severity)
			assert.Equal(t, "1", alerts[0].BranchID)
		})
	}
}

func TestEvaluateAlerts_BoundaryValuesDoNotTrigger(t *testing.T) {
	// an unchanged period with exactly 20% margin is normal
	alerts := ledger.EvaluateAlerts(
		[]domain.PeriodBucket{bucket("1", 100, 80)},
		[]domain.PeriodBucket{bucket("1", 100, 80)},
	)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertAllNormal, alerts[0].Kind)
}

func TestEvaluateAlerts_LossCountAndOrdering(t *testing.T) {
	current := []domain.PeriodBucket{bucket("2", 100, 88), bucket("1", 100, 120)}
	invoices := []domain.Invoice{{ID: 1, Profit: -3}, {ID: 2, Profit: 5}, {ID: 3, Profit: -1}}

	alerts := ledger.EvaluateAlerts(current, nil, ledger.WithInvoices(invoices))
	require.Len(t, alerts, 3)

	assert.Equal(t, domain.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "", alerts[0].BranchID)
	assert.Equal(t, domain.AlertLosses, alerts[0].Kind)
	// the losing bucket of branch 1 is made of those invoices
	assert.Equal(t, 2.0, alerts[0].Value)

	assert.Equal(t, domain.SeverityCritical, alerts[1].Severity)
	assert.Equal(t, "1", alerts[1].BranchID)
	assert.Equal(t, domain.AlertLowMargin, alerts[1].Kind)

	assert.Equal(t, domain.SeverityWarning, alerts[2].Severity)
	assert.Equal(t, "2", alerts[2].BranchID)
}

func TestEvaluateAlerts_LossesWithoutRecordsCountBuckets(t *testing.T) {
	current := []domain.PeriodBucket{bucket("1", 100, 120), bucket("2", 100, 110), bucket("3", 100, 50)}

	alerts := ledger.EvaluateAlerts(current, nil)
	require.NotEmpty(t, alerts)
	assert.Equal(t, domain.AlertLosses, alerts[0].Kind)
	assert.Equal(t, 2.0, alerts[0].Value)
}

func TestEvaluateAlerts_LossesFromInvoicesAndDailyTotals(t *testing.T) {
	current := []domain.PeriodBucket{bucket("1", 200, 205), bucket("3", 100, 130)}
	invoices := []domain.Invoice{{ID: 1, BranchID: "1", Profit: -5}}
	daily := []domain.LineItem{
		{BranchID: "3", Total: 50, Quantity: 1, UnitCost: 80, Preaggregated: true},
		{BranchID: "3", Total: 50, Quantity: 1, UnitCost: 50, Preaggregated: true},
	}

	alerts := ledger.EvaluateAlerts(current, nil, ledger.WithInvoices(invoices), ledger.WithDailyTotals(daily))
	require.NotEmpty(t, alerts)
	assert.Equal(t, domain.AlertLosses, alerts[0].Kind)
	assert.Equal(t, 2.0, alerts[0].Value)
}

// ============================================================
// Trend projector
// ============================================================

func TestProject(t *testing.T) {
	historical := []domain.PeriodBucket{
		bucket("1", 400, 300), bucket("1", 600, 400),
		bucket("2", 800, 500),
		bucket("3", 100, 90),
	}
	latest := []domain.PeriodBucket{bucket("1", 550, 400), bucket("2", 700, 500)}

	f := ledger.Project(historical, latest, 4)
	require.Len(t, f.Rows, 3)
	assert.Equal(t, "2", f.LeaderID)

	r1 := f.Rows[0]
	assert.Equal(t, "1", r1.BranchID)
	assert.InDelta(t, 500, r1.AvgSales, 1e-9)
	assert.InDelta(t, 150, r1.AvgProfit, 1e-9)
	assert.InDelta(t, 125, r1.ProjectedSales, 1e-9)
	assert.InDelta(t, 550, r1.LatestSales, 1e-9)
	assert.Equal(t, 10.0, r1.TrendPct)
	assert.Equal(t, domain.TrendUp, r1.Direction)

	r2 := f.Rows[1]
	assert.Equal(t, -12.5, r2.TrendPct)
	assert.Equal(t, domain.TrendDown, r2.Direction)

	r3 := f.Rows[2]
	assert.Equal(t, 0.0, r3.LatestSales)
	assert.Equal(t, -100.0, r3.TrendPct)
}

func TestProject_UsesMostRecentLatestBucket(t *testing.T) {
	older := bucket("1", 10, 0)
	older.Start = day(2026, 1, 1)
	newer := bucket("1", 105, 0)
	newer.Start = day(2026, 2, 1)

	f := ledger.Project([]domain.PeriodBucket{bucket("1", 100, 0)}, []domain.PeriodBucket{newer, older}, 0)
	require.Len(t, f.Rows, 1)
	assert.Equal(t, 105.0, f.Rows[0].LatestSales)
	assert.Equal(t, domain.TrendStable, f.Rows[0].Direction)
	assert.InDelta(t, 100, f.Rows[0].ProjectedSales, 1e-9)
}

func TestProject_TieKeepsLowestBranch(t *testing.T) {
	f := ledger.Project([]domain.PeriodBucket{bucket("7", 100, 0), bucket("3", 100, 0)}, nil, 4)
	assert.Equal(t, "3", f.LeaderID)
}

func TestProject_Empty(t *testing.T) {
	f := ledger.Project(nil, nil, 4)
	assert.Empty(t, f.Rows)
	assert.Equal(t, "", f.LeaderID)
}

// ============================================================
// Periods
// ============================================================

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		label string
		want  domain.Period
	}{
		{"2025", domain.Period{Label: "2025", From: day(2025, 1, 1), To: day(2025, 12, 31), Granularity: domain.Month}},
		{"2026-2", domain.Period{Label: "2026-02", From: day(2026, 2, 1), To: day(2026, 2, 28), Granularity: domain.Month}},
		{"2026-W01", domain.Period{Label: "2026-W01", From: day(2025, 12, 29), To: day(2026, 1, 4), Granularity: domain.Week}},
		{"2026-01-15", domain.Period{Label: "2026-01-15", From: day(2026, 1, 15), To: day(2026, 1, 15), Granularity: domain.Day}},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ledger.ParsePeriod(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePeriod_Invalid(t *testing.T) {
	for _, label := range []string{"", "jan", "2026-13", "2026-W60", "2026-02-30", "26-01"} {
		_, err := ledger.ParsePeriod(label)
		var verr *domain.ErrValidation
		assert.ErrorAs(t, err, &verr, "label %q", label)
	}
}

func TestPreviousPeriod(t *testing.T) {
	month, _ := ledger.ParsePeriod("2026-01")
	assert.Equal(t, "2025-12", ledger.PreviousPeriod(month).Label)

	week, _ := ledger.ParsePeriod("2026-W01")
	assert.Equal(t, "2025-W52", ledger.PreviousPeriod(week).Label)

	year, _ := ledger.ParsePeriod("2026")
	assert.Equal(t, "2025", ledger.PreviousPeriod(year).Label)

	custom, err := ledger.RangePeriod(day(2026, 1, 11), day(2026, 1, 20))
	require.NoError(t, err)
	prev := ledger.PreviousPeriod(custom)
	assert.Equal(t, day(2026, 1, 1), prev.From)
	assert.Equal(t, day(2026, 1, 10), prev.To)
}
