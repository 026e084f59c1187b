package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/tireshop-analytics-go/internal/config"
	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/observability"
	"github.com/boddenberg/tireshop-analytics-go/internal/ingest"
	"github.com/boddenberg/tireshop-analytics-go/internal/ledger"
	"github.com/boddenberg/tireshop-analytics-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service")

// Snapshot is one fully materialized load. Nothing in it is modified after
// Load returns, so it is shared by all requests without locking.
type Snapshot struct {
	ID       string
	LoadedAt time.Time

	Lines    []domain.SegmentedLine // every accepted line, configuration order then source order
	Invoices []domain.Invoice       // rolled up per source, so sentinel groups never merge across sources
	Daily    []domain.LineItem      // attributable pre-aggregated daily totals
	Branches []string
	Reports  []domain.LoadReport

	First, Last time.Time // date range of attributable lines
}

// Loader builds snapshots from the configured sources.
type Loader struct {
	reader         port.SheetReader
	metrics        *observability.Metrics
	logger         *zap.Logger
	maxConcurrency int
}

// NewLoader creates a Loader reading at most maxConcurrency sources at once.
func NewLoader(reader port.SheetReader, metrics *observability.Metrics, logger *zap.Logger, maxConcurrency int) *Loader {
	return &Loader{
		reader:         reader,
		metrics:        metrics,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

type sourceResult struct {
	items  []domain.LineItem
	report domain.LoadReport
}

// Load reads every source in parallel, then segments and rolls them up in
// configuration order. Any failing source fails the whole load.
func (l *Loader) Load(ctx context.Context, sources []config.SourceConfig) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Loader.Load")
	defer span.End()
	span.SetAttributes(attribute.Int("sources", len(sources)))

	start := time.Now()
	results := make([]sourceResult, len(sources))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, l.maxConcurrency))

	for i, src := range sources {
		g.Go(func() error {
			items, report, err := ingest.Load(gCtx, l.reader, src)
			if err != nil {
				l.logger.Error("failed to load source",
					zap.String("source", src.Name),
					zap.String("path", src.Path),
					zap.Error(err),
				)
				var extErr *domain.ErrExternalService
				var circuitOpen *domain.ErrCircuitOpen
				if errors.As(err, &extErr) || errors.As(err, &circuitOpen) {
					l.metrics.IncrExternalError(src.Name)
				}
				return fmt.Errorf("loading source %s: %w", src.Name, err)
			}
			results[i] = sourceResult{items: items, report: report}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:       uuid.NewString(),
		Lines:    make([]domain.SegmentedLine, 0),
		Invoices: make([]domain.Invoice, 0),
		Reports:  make([]domain.LoadReport, 0, len(results)),
	}

	base := 0
	for _, r := range results {
		var segmented []domain.SegmentedLine
		segmented, base = ledger.SegmentFrom(r.items, base)
		invoices := ledger.RollupInvoices(segmented)

		report := r.report
		report.Invoices = ledger.DistinctInvoices(invoices)
		report.BranchConflicts = ledger.CountBranchConflicts(invoices)

		snap.Lines = append(snap.Lines, segmented...)
		snap.Invoices = append(snap.Invoices, invoices...)
		snap.Reports = append(snap.Reports, report)

		l.metrics.RecordLoad(report)
		l.logger.Info("source loaded",
			zap.String("source", report.Source),
			zap.String("kind", report.Kind),
			zap.Int("rows_read", report.RowsRead),
			zap.Int("accepted", report.Accepted),
			zap.Int("dropped_no_date", report.DroppedNoDate),
			zap.Int("dropped_before_cutoff", report.DroppedCutoff),
			zap.Int("unattributable", report.Unattributable),
			zap.Int("dates_corrected", report.DatesCorrected),
			zap.Int("invoices", report.Invoices),
		)
		if report.BranchConflicts > 0 {
			l.logger.Warn("invoice numbers observed under more than one branch",
				zap.String("source", report.Source),
				zap.Int("branch_conflicts", report.BranchConflicts),
			)
		}
	}

	snap.Daily = ledger.DailyTotals(snap.Lines)
	snap.Branches = ledger.Branches(snap.Lines)
	for _, line := range snap.Lines {
		if !line.Attributable() {
			continue
		}
		if snap.First.IsZero() || line.Date.Before(snap.First) {
			snap.First = line.Date
		}
		if line.Date.After(snap.Last) {
			snap.Last = line.Date
		}
	}

	snap.LoadedAt = time.Now()
	l.metrics.MarkSnapshotLoaded(snap.LoadedAt)
	l.metrics.RecordRequestDuration("load", time.Since(start))

	l.logger.Info("snapshot ready",
		zap.String("snapshot_id", snap.ID),
		zap.Int("lines", len(snap.Lines)),
		zap.Int("invoices", len(snap.Invoices)),
		zap.Strings("branches", snap.Branches),
		zap.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}
