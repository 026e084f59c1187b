package handler

import (
	"net/http"
	"strconv"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/boddenberg/tireshop-analytics-go/internal/ledger"
	"github.com/boddenberg/tireshop-analytics-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dashboard
// ============================================================

func branchesHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/branches")
		defer span.End()

		opts, err := svc.Branches(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, opts)
	}
}

func overviewHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/overview")
		defer span.End()

		f, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		ov, err := svc.Overview(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ov)
	}
}

func bucketsHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/buckets")
		defer span.End()

		f, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		buckets, err := svc.Buckets(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, buckets)
	}
}

func invoicesHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices")
		defer span.End()

		f, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		page, pageSize := parsePagination(r)

		list, err := svc.Invoices(ctx, f, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ============================================================
// Period views
// ============================================================

// latestMonth is the calendar month of the last data date.
func latestMonth(svc *service.ReportService) func() (domain.Period, error) {
	return func() (domain.Period, error) {
		_, last, err := svc.DataRange()
		if err != nil {
			return domain.Period{}, err
		}
		return ledger.ParsePeriod(last.Format("2006-01"))
	}
}

// referenceYear is the year before the last data year, or the last data year
// itself when the data does not reach back that far.
func referenceYear(svc *service.ReportService) func() (domain.Period, error) {
	return func() (domain.Period, error) {
		first, last, err := svc.DataRange()
		if err != nil {
			return domain.Period{}, err
		}
		year := last.Year()
		if first.Year() < year {
			year--
		}
		return ledger.ParsePeriod(strconv.Itoa(year))
	}
}

func compareHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/compare")
		defer span.End()

		q := r.URL.Query()
		var a, b domain.Period
		var err error

		if hasAny(q, "a_from", "a_to", "b_from", "b_to") {
			if a, err = parseRange(q, "a"); err == nil {
				b, err = parseRange(q, "b")
			}
		} else {
			if b, err = parsePeriod(q, "period_b", latestMonth(svc)); err == nil {
				a, err = parsePeriod(q, "period_a", func() (domain.Period, error) {
					return ledger.PreviousPeriod(b), nil
				})
			}
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		cmp, err := svc.Compare(ctx, a, b, parseBranches(q))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cmp)
	}
}

func alertsHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/alerts")
		defer span.End()

		q := r.URL.Query()
		current, err := parsePeriod(q, "period", latestMonth(svc))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		previous, err := parsePeriod(q, "previous", func() (domain.Period, error) {
			return ledger.PreviousPeriod(current), nil
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, err := svc.Alerts(ctx, current, previous, parseBranches(q))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func forecastHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/forecast")
		defer span.End()

		q := r.URL.Query()
		reference, err := parsePeriod(q, "year", referenceYear(svc))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		latest, err := parsePeriod(q, "latest", latestMonth(svc))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, err := svc.Forecast(ctx, reference, latest, parseBranches(q))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func diagnosticsHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/diagnostics")
		defer span.End()

		d, err := svc.Diagnostics(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}
