package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/tireshop-analytics-go/internal/config"
	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/boddenberg/tireshop-analytics-go/internal/handler"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/cache"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/observability"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/resilience"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/sheet"
	"github.com/boddenberg/tireshop-analytics-go/internal/service"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func workbook(t *testing.T, rows [][]any) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func newReader() *sheet.Reader {
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 4}
	fetcher := sheet.NewHTTPFetcher(&http.Client{Timeout: 5 * time.Second}, resilience.NewCircuitBreaker("test"), cfg)
	return sheet.NewReader(fetcher)
}

// TestIntegration_FullFlow loads a remote workbook, a remote CSV export and a
// local daily workbook through a sources file, then queries the API.
func TestIntegration_FullFlow(t *testing.T) {
	// --- Remote sources ---
	book := workbook(t, [][]any{
		{"date", "total", "qty", "cost", "invoice_no", "warehouse"},
		{46023, 115, 1, 23, "INV1", "مستودع 1"},
		{46054, 230, 2, 46, "INV2", "مستودع 1"},
	})
	bookBuf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	book.Close()

	export := strings.Join([]string{
		"date;total;qty;cost;invoice_no;warehouse",
		"2026-01-20;300;3;50;C1;WH 2",
		"2026-02-20;150;1;140;C2;WH 2",
	}, "\n")

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/book.xlsx":
			w.Write(bookBuf.Bytes())
		case "/export.csv":
			w.Write([]byte(export))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer remote.Close()

	// --- Local source + sources file ---
	dir := t.TempDir()
	daily := workbook(t, [][]any{
		{"date", "warehouse", "total", "cost"},
		{"2026-01-31", "WH 3", 500, ""},
		{"2026-02-28", "WH 3", 600, ""},
	})
	if err := daily.SaveAs(filepath.Join(dir, "daily.xlsx")); err != nil {
		t.Fatal(err)
	}
	daily.Close()

	sourcesFile := filepath.Join(dir, "sources.toml")
	doc := `
[[source]]
name = "book"
kind = "xlsx_lines"
path = "` + remote.URL + `/book.xlsx"
tax_inclusive = true

[[source]]
name = "export"
kind = "csv_lines"
path = "` + remote.URL + `/export.csv"
delimiter = ";"

[[source]]
name = "daily"
kind = "xlsx_daily"
path = "daily.xlsx"

[source.margin_rates."*"]
"2026-01" = 0.2
"*" = 0.25
`
	if err := os.WriteFile(sourcesFile, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	sources, err := config.LoadSources(sourcesFile)
	if err != nil {
		t.Fatalf("failed to load sources: %v", err)
	}

	// --- Build service ---
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	snap, err := service.NewLoader(newReader(), metrics, logger, 4).Load(context.Background(), sources)
	if err != nil {
		t.Fatalf("failed to load snapshot: %v", err)
	}
	svc := service.NewReportService(snap, cache.New[any](time.Minute), metrics, logger, 4)
	router := handler.NewRouter(svc, metrics, logger)

	// --- Overview ---
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/overview?granularity=month", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var ov domain.Overview
	if err := json.NewDecoder(rec.Body).Decode(&ov); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if ov.KPIs.Invoices != 4 {
		t.Errorf("expected 4 invoices, got %d", ov.KPIs.Invoices)
	}
	if ov.KPIs.Sales != 1850 {
		t.Errorf("expected sales 1850, got %v", ov.KPIs.Sales)
	}
	if ov.KPIs.Cost != 1240 {
		t.Errorf("expected cost 1240, got %v", ov.KPIs.Cost)
	}
	if len(ov.Options) != 3 {
		t.Errorf("expected 3 branches, got %d", len(ov.Options))
	}

	// --- Alerts ---
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/alerts?period=2026-02", nil))

	var alerts domain.AlertReport
	if err := json.NewDecoder(rec.Body).Decode(&alerts); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(alerts.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %+v", alerts.Alerts)
	}
	for _, a := range alerts.Alerts {
		if a.BranchID != "2" || a.Severity != domain.SeverityCritical {
			t.Errorf("unexpected alert: %+v", a)
		}
	}

	// --- Diagnostics ---
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/diagnostics", nil))

	var diag domain.Diagnostics
	if err := json.NewDecoder(rec.Body).Decode(&diag); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(diag.Sources) != 3 {
		t.Fatalf("expected 3 source reports, got %d", len(diag.Sources))
	}
	if diag.Sources[2].CostsEstimated != 2 {
		t.Errorf("expected 2 estimated daily costs, got %d", diag.Sources[2].CostsEstimated)
	}
}

// TestIntegration_MissingRemoteSource checks a 404 source fails the load
// without being retried.
func TestIntegration_MissingRemoteSource(t *testing.T) {
	var hits atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer remote.Close()

	sources, err := config.ParseSources([]byte(`
[[source]]
name = "gone"
kind = "csv_lines"
path = "` + remote.URL + `/gone.csv"
`))
	if err != nil {
		t.Fatalf("failed to parse sources: %v", err)
	}

	_, err = service.NewLoader(newReader(), observability.NewMetrics(), zap.NewNop(), 1).Load(context.Background(), sources)
	if err == nil {
		t.Fatal("expected load to fail")
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single request, got %d", hits.Load())
	}
}
