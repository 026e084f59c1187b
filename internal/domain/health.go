package domain

import "time"

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual component.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// IngestMetrics is returned by GET /v1/metrics/ingest.
type IngestMetrics struct {
	RowsRead       int64   `json:"rowsRead"`
	RowsAccepted   int64   `json:"rowsAccepted"`
	RowsDropped    int64   `json:"rowsDropped"`
	Unattributable int64   `json:"unattributable"`
	DatesCorrected int64   `json:"datesCorrected"`
	CostsEstimated int64   `json:"costsEstimated"`
	DropRate       float64 `json:"dropRate"`
	CacheHitRate   float64 `json:"cacheHitRate"`
	Period         string  `json:"period"`
}

// ============================================================
// Report API Responses
// ============================================================

// ListResponse wraps paginated list results.
type ListResponse[T any] struct {
	Data     []T  `json:"data"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}

// Diagnostics describes the loaded snapshot.
type Diagnostics struct {
	SnapshotID string       `json:"snapshot_id"`
	LoadedAt   time.Time    `json:"loaded_at"`
	Lines      int          `json:"lines"`
	Invoices   int          `json:"invoices"`
	Branches   []string     `json:"branches"`
	First      time.Time    `json:"first_date"`
	Last       time.Time    `json:"last_date"`
	Sources    []LoadReport `json:"sources"`
}
