package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
)

// Filter restricts aggregation to a branch subset and an inclusive date range.
// Empty Branches and zero dates mean "no restriction".
type Filter struct {
	Branches []string
	From     time.Time
	To       time.Time
}

// MatchBranch reports whether branch passes the filter.
func (f Filter) MatchBranch(branch string) bool {
	if len(f.Branches) == 0 {
		return true
	}
	for _, b := range f.Branches {
		if b == branch {
			return true
		}
	}
	return false
}

// MatchDate compares calendar days, so To includes the whole day.
func (f Filter) MatchDate(t time.Time) bool {
	d := dayOf(t)
	if !f.From.IsZero() && d.Before(dayOf(f.From)) {
		return false
	}
	if !f.To.IsZero() && d.After(dayOf(f.To)) {
		return false
	}
	return true
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BucketKey returns the key and start of the bucket containing t.
// Keys are "2006-01-02" (day), "2006-W01" (ISO week) and "2006-01" (month).
func BucketKey(t time.Time, g domain.Granularity) (string, time.Time) {
	d := dayOf(t)
	switch g {
	case domain.Week:
		year, week := d.ISOWeek()
		offset := (int(d.Weekday()) + 6) % 7 // days since Monday
		return fmt.Sprintf("%04d-W%02d", year, week), d.AddDate(0, 0, -offset)
	case domain.Month:
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start.Format("2006-01"), start
	default:
		return d.Format("2006-01-02"), d
	}
}

// FilterInvoices returns the invoices passing f, in input order.
func FilterInvoices(invoices []domain.Invoice, f Filter) []domain.Invoice {
	out := make([]domain.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if f.MatchBranch(inv.BranchID) && f.MatchDate(inv.Date) {
			out = append(out, inv)
		}
	}
	return out
}

// FilterDaily returns the daily totals passing f, in input order.
func FilterDaily(daily []domain.LineItem, f Filter) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(daily))
	for _, d := range daily {
		if f.MatchBranch(d.BranchID) && f.MatchDate(d.Date) {
			out = append(out, d)
		}
	}
	return out
}

// Aggregate rolls segmented lines up to invoices and then to period buckets.
func Aggregate(lines []domain.SegmentedLine, f Filter, g domain.Granularity) []domain.PeriodBucket {
	return AggregateInvoices(RollupInvoices(lines), DailyTotals(lines), f, g)
}

type bucketKey struct {
	branch string
	key    string
}

type bucketAcc struct {
	bucket   domain.PeriodBucket
	invoices map[int]struct{}
}

// AggregateInvoices groups invoices and pre-aggregated daily totals by
// (branch, bucket). The filter is applied first, so every total reflects only
// surviving rows. Daily totals contribute amounts but no invoices.
// Buckets are ordered by start, then branch.
func AggregateInvoices(invoices []domain.Invoice, daily []domain.LineItem, f Filter, g domain.Granularity) []domain.PeriodBucket {
	if !g.Valid() {
		g = domain.Day
	}
	accs := make(map[bucketKey]*bucketAcc)

	get := func(branch string, date time.Time) *bucketAcc {
		key, start := BucketKey(date, g)
		k := bucketKey{branch: branch, key: key}
		acc, ok := accs[k]
		if !ok {
			acc = &bucketAcc{
				bucket:   domain.PeriodBucket{BranchID: branch, Key: key, Start: start},
				invoices: make(map[int]struct{}),
			}
			accs[k] = acc
		}
		return acc
	}

	for _, inv := range invoices {
		if inv.BranchID == "" || !f.MatchBranch(inv.BranchID) || !f.MatchDate(inv.Date) {
			continue
		}
		acc := get(inv.BranchID, inv.Date)
		acc.bucket.Sales += inv.Sales
		acc.bucket.Cost += inv.Cost
		if inv.ID != 0 {
			acc.invoices[inv.ID] = struct{}{}
		}
		if inv.Estimated {
			acc.bucket.Estimated = true
		}
	}

	for _, d := range daily {
		if d.BranchID == "" || !f.MatchBranch(d.BranchID) || !f.MatchDate(d.Date) {
			continue
		}
		acc := get(d.BranchID, d.Date)
		acc.bucket.Sales += d.Total
		acc.bucket.Cost += d.LineCost()
		if d.CostEstimated {
			acc.bucket.Estimated = true
		}
	}

	out := make([]domain.PeriodBucket, 0, len(accs))
	for _, acc := range accs {
		b := acc.bucket
		b.Profit = b.Sales - b.Cost
		b.ProfitPct = ProfitPct(b.Profit, b.Sales)
		b.InvoiceCount = len(acc.invoices)
		out = append(out, b)
	}
	sortBuckets(out)
	return out
}

// ByBranch collapses buckets into one bucket per branch labelled key.
// Invoice counts add up because every invoice belongs to exactly one bucket.
func ByBranch(buckets []domain.PeriodBucket, key string) []domain.PeriodBucket {
	index := make(map[string]int)
	out := make([]domain.PeriodBucket, 0)
	for _, b := range buckets {
		pos, ok := index[b.BranchID]
		if !ok {
			pos = len(out)
			index[b.BranchID] = pos
			out = append(out, domain.PeriodBucket{BranchID: b.BranchID, Key: key, Start: b.Start})
		}
		acc := &out[pos]
		if b.Start.Before(acc.Start) {
			acc.Start = b.Start
		}
		acc.Sales += b.Sales
		acc.Cost += b.Cost
		acc.Profit += b.Profit
		acc.InvoiceCount += b.InvoiceCount
		acc.Estimated = acc.Estimated || b.Estimated
	}
	for i := range out {
		out[i].ProfitPct = ProfitPct(out[i].Profit, out[i].Sales)
	}
	sort.SliceStable(out, func(i, j int) bool { return LessBranch(out[i].BranchID, out[j].BranchID) })
	return out
}

// Totals sums buckets into a single bucket with an empty branch id.
func Totals(buckets []domain.PeriodBucket) domain.PeriodBucket {
	var t domain.PeriodBucket
	for _, b := range buckets {
		t.Sales += b.Sales
		t.Cost += b.Cost
		t.Profit += b.Profit
		t.InvoiceCount += b.InvoiceCount
		t.Estimated = t.Estimated || b.Estimated
	}
	t.ProfitPct = ProfitPct(t.Profit, t.Sales)
	return t
}

// Branches returns the distinct attributable branch ids of lines, sorted.
func Branches(lines []domain.SegmentedLine) []string {
	set := make(map[string]struct{})
	for _, l := range lines {
		if l.Attributable() {
			set[l.BranchID] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return LessBranch(out[i], out[j]) })
	return out
}

func sortBuckets(b []domain.PeriodBucket) {
	sort.Slice(b, func(i, j int) bool {
		if !b[i].Start.Equal(b[j].Start) {
			return b[i].Start.Before(b[j].Start)
		}
		return LessBranch(b[i].BranchID, b[j].BranchID)
	})
}
