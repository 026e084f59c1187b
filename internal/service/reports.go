package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/observability"
	"github.com/boddenberg/tireshop-analytics-go/internal/ledger"
	"github.com/boddenberg/tireshop-analytics-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReportService serves read-only views over one snapshot.
type ReportService struct {
	snap       *Snapshot
	cache      port.Cache[any]
	metrics    *observability.Metrics
	logger     *zap.Logger
	subPeriods int
}

// NewReportService creates the report service. subPeriods is the number of
// forecast sub-periods per bucket.
func NewReportService(snap *Snapshot, cache port.Cache[any], metrics *observability.Metrics, logger *zap.Logger, subPeriods int) *ReportService {
	return &ReportService{
		snap:       snap,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		subPeriods: subPeriods,
	}
}

// Ready reports whether a snapshot is loaded. It is safe on a nil service.
func (s *ReportService) Ready() bool {
	return s != nil && s.snap != nil
}

// SnapshotID returns the id of the loaded snapshot, or "" when none is
// loaded. It is safe on a nil service.
func (s *ReportService) SnapshotID() string {
	if !s.Ready() {
		return ""
	}
	return s.snap.ID
}

// DataRange returns the first and last attributable line dates.
func (s *ReportService) DataRange() (time.Time, time.Time, error) {
	if !s.Ready() {
		return time.Time{}, time.Time{}, &domain.ErrNoData{}
	}
	return s.snap.First, s.snap.Last, nil
}

// cached returns the value stored under key or builds and stores it.
// Stored values are shared, so build must return a fresh value.
func cached[T any](s *ReportService, op, key string, build func() T) (T, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration(op, time.Since(start))
	}()

	if s.snap == nil {
		s.metrics.IncrRequest("error")
		var zero T
		return zero, &domain.ErrNoData{}
	}
	s.metrics.IncrRequest("success")

	key = op + "|" + key
	if v, ok := s.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			s.metrics.IncrCacheHit(observability.ReportCache)
			return t, nil
		}
	}
	s.metrics.IncrCacheMiss(observability.ReportCache)

	t := build()
	s.cache.Set(key, t)
	s.logger.Debug("report built", zap.String("key", key), zap.Duration("elapsed", time.Since(start)))
	return t, nil
}

func filterKey(f domain.ReportFilter) string {
	return fmt.Sprintf("%s|%s|%s|%s", strings.Join(f.Branches, ","), dateKey(f.From), dateKey(f.To), f.Granularity)
}

func periodKey(p domain.Period) string {
	return fmt.Sprintf("%s|%s|%s|%s", p.Label, dateKey(p.From), dateKey(p.To), p.Granularity)
}

func dateKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func toFilter(f domain.ReportFilter) ledger.Filter {
	return ledger.Filter{Branches: f.Branches, From: f.From, To: f.To}
}

func (s *ReportService) buckets(f ledger.Filter, g domain.Granularity) []domain.PeriodBucket {
	return ledger.AggregateInvoices(s.snap.Invoices, s.snap.Daily, f, g)
}

// BranchLabel is the display label of a branch id.
func BranchLabel(id string) string {
	return "Branch " + id
}

// Branches lists the branch selector options.
func (s *ReportService) Branches(ctx context.Context) ([]domain.BranchOption, error) {
	_, span := tracer.Start(ctx, "ReportService.Branches")
	defer span.End()

	return cached(s, "branches", "", func() []domain.BranchOption {
		opts := make([]domain.BranchOption, 0, len(s.snap.Branches))
		for _, b := range s.snap.Branches {
			opts = append(opts, domain.BranchOption{ID: b, Label: BranchLabel(b)})
		}
		return opts
	})
}

// Overview builds the dashboard: headline KPIs, a per-branch summary and a
// per-branch time series for the filter.
func (s *ReportService) Overview(ctx context.Context, f domain.ReportFilter) (*domain.Overview, error) {
	_, span := tracer.Start(ctx, "ReportService.Overview")
	defer span.End()
	span.SetAttributes(attribute.String("filter", filterKey(f)))

	if !f.Granularity.Valid() {
		f.Granularity = domain.Day
	}

	return cached(s, "overview", filterKey(f), func() *domain.Overview {
		lf := toFilter(f)
		series := s.buckets(lf, f.Granularity)
		totals := ledger.Totals(series)

		summaries := make([]domain.BranchSummary, 0)
		for _, b := range ledger.ByBranch(series, "") {
			summaries = append(summaries, domain.BranchSummary{
				BranchID:  b.BranchID,
				Label:     BranchLabel(b.BranchID),
				Sales:     b.Sales,
				Profit:    b.Profit,
				ProfitPct: b.ProfitPct,
				Invoices:  b.InvoiceCount,
			})
		}

		options := make([]domain.BranchOption, 0, len(s.snap.Branches))
		for _, b := range s.snap.Branches {
			options = append(options, domain.BranchOption{ID: b, Label: BranchLabel(b)})
		}

		return &domain.Overview{
			Filter: f,
			KPIs: domain.OverviewKPIs{
				Invoices:  ledger.DistinctInvoices(ledger.FilterInvoices(s.snap.Invoices, lf)),
				Sales:     totals.Sales,
				Cost:      totals.Cost,
				Profit:    totals.Profit,
				ProfitPct: ledger.Round1(totals.ProfitPct),
				Estimated: totals.Estimated,
			},
			Branches: summaries,
			Series:   series,
			Options:  options,
		}
	})
}

// Buckets returns the period buckets for the filter.
func (s *ReportService) Buckets(ctx context.Context, f domain.ReportFilter) ([]domain.PeriodBucket, error) {
	_, span := tracer.Start(ctx, "ReportService.Buckets")
	defer span.End()

	if !f.Granularity.Valid() {
		f.Granularity = domain.Day
	}
	return cached(s, "buckets", filterKey(f), func() []domain.PeriodBucket {
		return s.buckets(toFilter(f), f.Granularity)
	})
}

// Invoices returns one page of the invoices passing the filter, in source order.
func (s *ReportService) Invoices(ctx context.Context, f domain.ReportFilter, page, pageSize int) (*domain.ListResponse[domain.Invoice], error) {
	_, span := tracer.Start(ctx, "ReportService.Invoices")
	defer span.End()

	all, err := cached(s, "invoices", filterKey(f), func() []domain.Invoice {
		return ledger.FilterInvoices(s.snap.Invoices, toFilter(f))
	})
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	from := min((page-1)*pageSize, len(all))
	to := min(from+pageSize, len(all))

	data := make([]domain.Invoice, to-from)
	copy(data, all[from:to])

	return &domain.ListResponse[domain.Invoice]{
		Data:     data,
		Total:    len(all),
		Page:     page,
		PageSize: pageSize,
		HasMore:  to < len(all),
	}, nil
}

// Compare joins two periods branch by branch.
func (s *ReportService) Compare(ctx context.Context, a, b domain.Period, branches []string) (*domain.Comparison, error) {
	_, span := tracer.Start(ctx, "ReportService.Compare")
	defer span.End()
	span.SetAttributes(attribute.String("period_a", a.Label), attribute.String("period_b", b.Label))

	key := periodKey(a) + "|" + periodKey(b) + "|" + strings.Join(branches, ",")
	return cached(s, "compare", key, func() *domain.Comparison {
		rows := ledger.Compare(
			s.buckets(ledger.PeriodFilter(a, branches), a.Granularity),
			s.buckets(ledger.PeriodFilter(b, branches), b.Granularity),
		)
		return &domain.Comparison{A: a, B: b, Rows: rows}
	})
}

// Alerts evaluates the current period against the previous one.
func (s *ReportService) Alerts(ctx context.Context, current, previous domain.Period, branches []string) (*domain.AlertReport, error) {
	_, span := tracer.Start(ctx, "ReportService.Alerts")
	defer span.End()
	span.SetAttributes(attribute.String("period", current.Label))

	key := periodKey(current) + "|" + periodKey(previous) + "|" + strings.Join(branches, ",")
	return cached(s, "alerts", key, func() *domain.AlertReport {
		cf := ledger.PeriodFilter(current, branches)
		alerts := ledger.EvaluateAlerts(
			s.buckets(cf, current.Granularity),
			s.buckets(ledger.PeriodFilter(previous, branches), previous.Granularity),
			ledger.WithInvoices(ledger.FilterInvoices(s.snap.Invoices, cf)),
			ledger.WithDailyTotals(ledger.FilterDaily(s.snap.Daily, cf)),
		)
		return &domain.AlertReport{Current: current, Previous: previous, Alerts: alerts}
	})
}

// Forecast projects each branch from the reference period and measures the
// latest period against it. Both sides are bucketed at the reference
// granularity.
func (s *ReportService) Forecast(ctx context.Context, reference, latest domain.Period, branches []string) (*domain.ForecastReport, error) {
	_, span := tracer.Start(ctx, "ReportService.Forecast")
	defer span.End()
	span.SetAttributes(attribute.String("reference", reference.Label), attribute.String("latest", latest.Label))

	sub := s.subPeriods
	if sub <= 0 {
		sub = 1
	}

	key := periodKey(reference) + "|" + periodKey(latest) + "|" + strings.Join(branches, ",")
	return cached(s, "forecast", key, func() *domain.ForecastReport {
		g := reference.Granularity
		f := ledger.Project(
			s.buckets(ledger.PeriodFilter(reference, branches), g),
			s.buckets(ledger.PeriodFilter(latest, branches), g),
			sub,
		)
		return &domain.ForecastReport{Reference: reference, Latest: latest, SubPeriods: sub, Forecast: f}
	})
}

// Diagnostics describes the loaded snapshot and its per-source load reports.
func (s *ReportService) Diagnostics(ctx context.Context) (*domain.Diagnostics, error) {
	_, span := tracer.Start(ctx, "ReportService.Diagnostics")
	defer span.End()

	if s.snap == nil {
		return nil, &domain.ErrNoData{}
	}
	return &domain.Diagnostics{
		SnapshotID: s.snap.ID,
		LoadedAt:   s.snap.LoadedAt,
		Lines:      len(s.snap.Lines),
		Invoices:   ledger.DistinctInvoices(s.snap.Invoices),
		Branches:   s.snap.Branches,
		First:      s.snap.First,
		Last:       s.snap.Last,
		Sources:    s.snap.Reports,
	}, nil
}
