package ledger

import (
	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
)

type invoiceKey struct {
	id     int
	branch string
}

// RollupInvoices groups segmented lines by (invoice id, branch id) in
// first-seen order. Sales is the sum of line totals, cost the sum of
// quantity × unit cost; date and note come from the first line of the group.
//
// Lines without a branch and pre-aggregated daily totals are skipped. When an
// invoice id shows up under more than one branch every resulting group is
// flagged BranchConflict instead of picking one branch silently.
func RollupInvoices(lines []domain.SegmentedLine) []domain.Invoice {
	index := make(map[invoiceKey]int)
	branchesByID := make(map[int]map[string]struct{})
	invoices := make([]domain.Invoice, 0)

	for _, l := range lines {
		if !l.Attributable() || l.Preaggregated {
			continue
		}

		k := invoiceKey{id: l.InvoiceID, branch: l.BranchID}
		pos, ok := index[k]
		if !ok {
			pos = len(invoices)
			index[k] = pos
			invoices = append(invoices, domain.Invoice{
				ID:         l.InvoiceID,
				BranchID:   l.BranchID,
				Date:       l.Date,
				Note:       l.Note,
				Unassigned: l.InvoiceID == 0,
			})
		}

		inv := &invoices[pos]
		inv.Sales += l.Total
		inv.Cost += l.LineCost()
		inv.Lines++
		if l.CostEstimated {
			inv.Estimated = true
		}

		set, ok := branchesByID[l.InvoiceID]
		if !ok {
			set = make(map[string]struct{}, 1)
			branchesByID[l.InvoiceID] = set
		}
		set[l.BranchID] = struct{}{}
	}

	for i := range invoices {
		inv := &invoices[i]
		inv.Profit = inv.Sales - inv.Cost
		if len(branchesByID[inv.ID]) > 1 {
			inv.BranchConflict = true
		}
	}
	return invoices
}

// CountBranchConflicts returns the number of invoice ids observed under more
// than one branch.
func CountBranchConflicts(invoices []domain.Invoice) int {
	seen := make(map[int]struct{})
	for _, inv := range invoices {
		if inv.BranchConflict {
			seen[inv.ID] = struct{}{}
		}
	}
	return len(seen)
}

// DistinctInvoices counts distinct real invoice ids, ignoring the sentinel 0.
func DistinctInvoices(invoices []domain.Invoice) int {
	seen := make(map[int]struct{}, len(invoices))
	for _, inv := range invoices {
		if inv.ID != 0 {
			seen[inv.ID] = struct{}{}
		}
	}
	return len(seen)
}

// DailyTotals returns the attributable pre-aggregated rows of lines.
func DailyTotals(lines []domain.SegmentedLine) []domain.LineItem {
	out := make([]domain.LineItem, 0)
	for _, l := range lines {
		if l.Preaggregated && l.Attributable() {
			out = append(out, l.LineItem)
		}
	}
	return out
}
