package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/boddenberg/tireshop-analytics-go/internal/ledger"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func parsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 20
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}
	return
}

// parseBranches accepts both ?branch=1,2 and ?branch=1&branch=2.
func parseBranches(q url.Values) []string {
	var out []string
	for _, v := range q["branch"] {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				out = append(out, b)
			}
		}
	}
	return out
}

func parseDate(q url.Values, field string) (time.Time, error) {
	v := strings.TrimSpace(q.Get(field))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, &domain.ErrValidation{Field: field, Message: fmt.Sprintf("expected YYYY-MM-DD, got %q", v)}
	}
	return t, nil
}

// parseFilter reads branch, date_from, date_to and granularity.
func parseFilter(r *http.Request) (domain.ReportFilter, error) {
	q := r.URL.Query()
	f := domain.ReportFilter{Branches: parseBranches(q)}

	var err error
	if f.From, err = parseDate(q, "date_from"); err != nil {
		return f, err
	}
	if f.To, err = parseDate(q, "date_to"); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, &domain.ErrValidation{Field: "date_to", Message: "date_to is before date_from"}
	}

	if g := q.Get("granularity"); g != "" {
		f.Granularity = domain.Granularity(strings.ToLower(g))
		if !f.Granularity.Valid() {
			return f, &domain.ErrValidation{Field: "granularity", Message: fmt.Sprintf("expected day, week or month, got %q", g)}
		}
	}
	return f, nil
}

// parsePeriod reads a period label from field, or returns def when absent.
func parsePeriod(q url.Values, field string, def func() (domain.Period, error)) (domain.Period, error) {
	label := strings.TrimSpace(q.Get(field))
	if label == "" {
		return def()
	}
	p, err := ledger.ParsePeriod(label)
	if err != nil {
		var v *domain.ErrValidation
		if errors.As(err, &v) {
			v.Field = field
		}
		return domain.Period{}, err
	}
	return p, nil
}

// parseRange reads a custom period from <prefix>_from and <prefix>_to.
func parseRange(q url.Values, prefix string) (domain.Period, error) {
	from, err := parseDate(q, prefix+"_from")
	if err != nil {
		return domain.Period{}, err
	}
	to, err := parseDate(q, prefix+"_to")
	if err != nil {
		return domain.Period{}, err
	}
	p, err := ledger.RangePeriod(from, to)
	if err != nil {
		var v *domain.ErrValidation
		if errors.As(err, &v) {
			v.Field = prefix + "_from"
		}
		return domain.Period{}, err
	}
	return p, nil
}

func hasAny(q url.Values, keys ...string) bool {
	for _, k := range keys {
		if q.Get(k) != "" {
			return true
		}
	}
	return false
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var noData *domain.ErrNoData
	var circuitOpen *domain.ErrCircuitOpen
	var external *domain.ErrExternalService
	var unavailable *domain.ErrSourceUnavailable

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &noData):
		logger.Warn("no snapshot loaded")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &unavailable):
		logger.Error("source unavailable", zap.String("source", unavailable.Source), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
