package ledger

import (
	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
)

// Compare joins two branch-keyed slices on branch id and computes the
// percentage change of every metric from a to b, rounded to one decimal.
//
// Branches missing from either side are dropped: without a baseline the change
// is meaningless. Rows follow the branch order of a. When no branch is common
// to both sides the result is empty, not an error.
func Compare(a, b []domain.PeriodBucket) []domain.ComparisonRow {
	left := ByBranch(a, "")
	right := make(map[string]domain.PeriodBucket)
	for _, r := range ByBranch(b, "") {
		right[r.BranchID] = r
	}

	rows := make([]domain.ComparisonRow, 0, len(left))
	for _, l := range left {
		r, ok := right[l.BranchID]
		if !ok {
			continue
		}
		rows = append(rows, domain.ComparisonRow{
			BranchID: l.BranchID,
			Sales:    change(l.Sales, r.Sales),
			Cost:     change(l.Cost, r.Cost),
			Profit:   change(l.Profit, r.Profit),
			Invoices: change(float64(l.InvoiceCount), float64(r.InvoiceCount)),
		})
	}
	return rows
}

func change(a, b float64) domain.MetricChange {
	pct, ok := PctChange(a, b)
	return domain.MetricChange{A: a, B: b, ChangePct: pct, Defined: ok}
}
