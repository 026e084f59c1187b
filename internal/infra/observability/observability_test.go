package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestIngestSnapshot_SumsSources(t *testing.T) {
	m := observability.NewMetrics()

	m.RecordLoad(domain.LoadReport{Source: "book10", RowsRead: 80, Accepted: 70, DroppedNoDate: 6, DroppedCutoff: 4, Unattributable: 3, Invoices: 20})
	m.RecordLoad(domain.LoadReport{Source: "daily", RowsRead: 20, Accepted: 20, CostsEstimated: 5})
	m.IncrCacheHit(observability.ReportCache)
	m.IncrCacheHit(observability.ReportCache)
	m.IncrCacheHit(observability.ReportCache)
	m.IncrCacheMiss(observability.ReportCache)

	snap := m.IngestSnapshot()
	if snap.RowsRead != 100 {
		t.Errorf("expected 100 rows read, got %d", snap.RowsRead)
	}
	if snap.RowsAccepted != 90 {
		t.Errorf("expected 90 accepted, got %d", snap.RowsAccepted)
	}
	if snap.RowsDropped != 10 {
		t.Errorf("expected 10 dropped, got %d", snap.RowsDropped)
	}
	if snap.Unattributable != 3 || snap.CostsEstimated != 5 {
		t.Errorf("unexpected tallies: %+v", snap)
	}
	if snap.DropRate != 0.1 {
		t.Errorf("expected drop rate 0.1, got %v", snap.DropRate)
	}
	if snap.CacheHitRate != 0.75 {
		t.Errorf("expected cache hit rate 0.75, got %v", snap.CacheHitRate)
	}
}

func TestIngestSnapshot_Empty(t *testing.T) {
	snap := observability.NewMetrics().IngestSnapshot()
	if snap.RowsRead != 0 || snap.DropRate != 0 || snap.CacheHitRate != 0 {
		t.Errorf("expected zeroed snapshot, got %+v", snap)
	}
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()
	a.RecordLoad(domain.LoadReport{Source: "x", RowsRead: 5})

	if got := b.IngestSnapshot().RowsRead; got != 0 {
		t.Errorf("expected isolated registry, got %d rows", got)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		infoOn    bool
		debugOn   bool
		warningOn bool
	}{
		{"info", true, false, true},
		{"debug", true, true, true},
		{"warn", false, false, true},
		{"bogus", true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			core := observability.NewLogger(tt.level).Core()
			if got := core.Enabled(zapcore.InfoLevel); got != tt.infoOn {
				t.Errorf("info enabled = %v, want %v", got, tt.infoOn)
			}
			if got := core.Enabled(zapcore.DebugLevel); got != tt.debugOn {
				t.Errorf("debug enabled = %v, want %v", got, tt.debugOn)
			}
			if got := core.Enabled(zapcore.WarnLevel); got != tt.warningOn {
				t.Errorf("warn enabled = %v, want %v", got, tt.warningOn)
			}
		})
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusServiceUnavailable} {
		h := observability.RequestLogger(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/overview?branch=1", nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d: level %s, want %s", i, e.Level, want[i])
		}
	}
	if q := entries[0].ContextMap()["query"]; q != "branch=1" {
		t.Errorf("expected query field, got %v", q)
	}
	if _, ok := entries[0].ContextMap()["snapshot_id"]; ok {
		t.Error("expected no snapshot_id without a snapshot")
	}
}

func TestRequestLogger_SnapshotRouteAndTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	core, logs := observer.New(zapcore.InfoLevel)

	r := chi.NewRouter()
	r.Use(observability.RequestLogger(zap.New(core), func() string { return "snap-1" }))
	r.Use(observability.TracingMiddleware)
	r.Get("/v1/invoices/{page}", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/v1/invoices/2", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["snapshot_id"] != "snap-1" {
		t.Errorf("expected snapshot_id snap-1, got %v", fields["snapshot_id"])
	}
	if fields["route"] != "/v1/invoices/{page}" {
		t.Errorf("expected route pattern, got %v", fields["route"])
	}
	if fields["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected trace_id, got %v", fields["trace_id"])
	}
}

func TestInitTracer_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := observability.InitTracer("", "tireshop-analytics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestTracingMiddleware_EchoesTraceID(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	h := observability.TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Trace-Id"); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected trace id echoed, got %q", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/alerts", nil))
	if got := rec.Header().Get("X-Trace-Id"); got != "" {
		t.Errorf("expected no trace id without traceparent, got %q", got)
	}
}
