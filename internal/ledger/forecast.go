package ledger

import (
	"sort"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
)

// StableBand is the trend percentage within which a branch counts as stable.
const StableBand = 5.0

type historyAcc struct {
	sales, profit float64
	buckets       int
}

// Project computes the naive baseline projection.
//
// For each branch of historical, the average sales and profit per bucket is
// divided by subPeriods to give the projected sub-period figure (for example
// four weeks per month). The trend compares the branch's most recent bucket in
// latest against the historical average, not against the projection. The
// leader is the branch with the highest average sales.
//
// No seasonality, confidence interval or error bound is computed.
func Project(historical, latest []domain.PeriodBucket, subPeriods int) domain.Forecast {
	if subPeriods <= 0 {
		subPeriods = 1
	}

	hist := make(map[string]*historyAcc)
	for _, b := range historical {
		acc, ok := hist[b.BranchID]
		if !ok {
			acc = &historyAcc{}
			hist[b.BranchID] = acc
		}
		acc.sales += b.Sales
		acc.profit += b.Profit
		acc.buckets++
	}

	last := make(map[string]domain.PeriodBucket)
	for _, b := range latest {
		cur, ok := last[b.BranchID]
		if !ok || b.Start.After(cur.Start) {
			last[b.BranchID] = b
		}
	}

	rows := make([]domain.ForecastRow, 0, len(hist))
	for branch, acc := range hist {
		avgSales := SafeRatio(acc.sales, float64(acc.buckets))
		avgProfit := SafeRatio(acc.profit, float64(acc.buckets))
		l := last[branch]

		trend := Round1(SafeRatio(l.Sales-avgSales, avgSales) * 100)
		dir := domain.TrendStable
		switch {
		case trend > StableBand:
			dir = domain.TrendUp
		case trend < -StableBand:
			dir = domain.TrendDown
		}

		rows = append(rows, domain.ForecastRow{
			BranchID:        branch,
			AvgSales:        avgSales,
			AvgProfit:       avgProfit,
			ProjectedSales:  avgSales / float64(subPeriods),
			ProjectedProfit: avgProfit / float64(subPeriods),
			LatestSales:     l.Sales,
			LatestProfit:    l.Profit,
			TrendPct:        trend,
			Direction:       dir,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return LessBranch(rows[i].BranchID, rows[j].BranchID) })

	f := domain.Forecast{Rows: rows}
	best := -1
	for i, r := range rows {
		// rows are in branch order, so a strict comparison keeps the lowest id on ties
		if best < 0 || r.AvgSales > rows[best].AvgSales {
			best = i
		}
	}
	if best >= 0 {
		f.LeaderID = rows[best].BranchID
	}
	return f
}
