package ledger

import (
	"fmt"
	"sort"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
)

// Alert thresholds, in percent.
const (
	SalesDropCritical = -20.0
	SalesDropWarning  = 0.0
	MarginCritical    = 10.0
	MarginWarning     = 20.0
)

type alertOptions struct {
	records  bool
	invoices []domain.Invoice
	daily    []domain.LineItem
}

// AlertOption customises EvaluateAlerts.
type AlertOption func(*alertOptions)

// WithInvoices counts losing invoices of the current period instead of
// losing buckets.
func WithInvoices(invoices []domain.Invoice) AlertOption {
	return func(o *alertOptions) {
		o.records = true
		o.invoices = invoices
	}
}

// WithDailyTotals counts losing daily-total rows of the current period
// instead of losing buckets. Combine with WithInvoices so a loss is counted
// once, on the record it came from.
func WithDailyTotals(daily []domain.LineItem) AlertOption {
	return func(o *alertOptions) {
		o.records = true
		o.daily = daily
	}
}

// EvaluateAlerts classifies the current slice against the previous one.
//
//   - sales change below -20% is critical, below 0% a warning;
//   - profit margin below 10% is critical, below 20% a warning;
//   - records with negative profit are reported together as one critical
//     loss alert. Records are the current buckets, or the invoices and daily
//     totals when WithInvoices or WithDailyTotals is given.
//
// When nothing triggers, the result is a single info alert rather than an
// empty list. Alerts are ordered by severity, then branch.
func EvaluateAlerts(current, previous []domain.PeriodBucket, opts ...AlertOption) []domain.Alert {
	var o alertOptions
	for _, opt := range opts {
		opt(&o)
	}

	prev := make(map[string]domain.PeriodBucket)
	for _, p := range ByBranch(previous, "") {
		prev[p.BranchID] = p
	}

	alerts := make([]domain.Alert, 0)
	for _, c := range ByBranch(current, "") {
		if p, ok := prev[c.BranchID]; ok && p.Sales > epsilon {
			pct := SafeRatio(c.Sales-p.Sales, p.Sales) * 100
			switch {
			case pct < SalesDropCritical:
				alerts = append(alerts, salesAlert(c.BranchID, domain.SeverityCritical, pct))
			case pct < SalesDropWarning:
				alerts = append(alerts, salesAlert(c.BranchID, domain.SeverityWarning, pct))
			}
		}

		if c.Sales > epsilon {
			margin := c.ProfitPct
			switch {
			case margin < MarginCritical:
				alerts = append(alerts, marginAlert(c.BranchID, domain.SeverityCritical, margin))
			case margin < MarginWarning:
				alerts = append(alerts, marginAlert(c.BranchID, domain.SeverityWarning, margin))
			}
		}
	}

	losses := 0
	if o.records {
		for _, inv := range o.invoices {
			if inv.Profit < 0 {
				losses++
			}
		}
		for _, d := range o.daily {
			if d.Total-d.LineCost() < 0 {
				losses++
			}
		}
	} else {
		for _, b := range current {
			if b.Profit < 0 {
				losses++
			}
		}
	}
	if losses > 0 {
		alerts = append(alerts, domain.Alert{
			Kind:     domain.AlertLosses,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("%d records closed at a loss", losses),
			Value:    float64(losses),
		})
	}

	if len(alerts) == 0 {
		return []domain.Alert{{
			Kind:     domain.AlertAllNormal,
			Severity: domain.SeverityInfo,
			Message:  "all branches within normal ranges",
		}}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		// load-wide alerts lead their severity group
		if (alerts[i].BranchID == "") != (alerts[j].BranchID == "") {
			return alerts[i].BranchID == ""
		}
		return LessBranch(alerts[i].BranchID, alerts[j].BranchID)
	})
	return alerts
}

func salesAlert(branch string, sev domain.Severity, pct float64) domain.Alert {
	return domain.Alert{
		BranchID: branch,
		Kind:     domain.AlertSalesDrop,
		Severity: sev,
		Message:  fmt.Sprintf("branch %s sales changed %.1f%% against the previous period", branch, pct),
		Value:    Round1(pct),
	}
}

func marginAlert(branch string, sev domain.Severity, margin float64) domain.Alert {
	return domain.Alert{
		BranchID: branch,
		Kind:     domain.AlertLowMargin,
		Severity: sev,
		Message:  fmt.Sprintf("branch %s profit margin is %.1f%%", branch, margin),
		Value:    Round1(margin),
	}
}
