package ledger

import (
	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
)

// Segment assigns invoice ids to items in source order.
//
// A running counter starts at 0 and is incremented before assignment whenever
// an item starts an invoice: a non-blank marker or the NewInvoice flag. Items
// before the first one share id 0, the "no invoice number observed yet"
// sentinel. The result depends on input
// order; items must be passed exactly as the source presented them.
func Segment(items []domain.LineItem) []domain.SegmentedLine {
	out, _ := SegmentFrom(items, 0)
	return out
}

// SegmentFrom segments items continuing from base, so several sources can be
// segmented independently while ids stay unique within one load. Items before
// the first marker still get the sentinel 0. It returns the last id used, or
// base when no marker was seen.
func SegmentFrom(items []domain.LineItem, base int) ([]domain.SegmentedLine, int) {
	out := make([]domain.SegmentedLine, len(items))
	seen := 0
	for i, it := range items {
		if it.StartsInvoice() {
			seen++
		}
		id := 0
		if seen > 0 {
			id = base + seen
		}
		out[i] = domain.SegmentedLine{LineItem: it, InvoiceID: id}
	}
	return out, base + seen
}
