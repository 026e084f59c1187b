package sheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/boddenberg/tireshop-analytics-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("sheet")

// maxDownload caps a remote source file.
const maxDownload = 64 << 20

// HTTPFetcher downloads remote source files.
type HTTPFetcher struct {
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
}

// NewHTTPFetcher creates a new HTTPFetcher.
func NewHTTPFetcher(httpClient *http.Client, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: httpClient,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
	}
}

// Fetch downloads url with retry, circuit breaker, and tracing.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "HTTPFetcher.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("source.url", url))

	if err := f.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer f.bulkhead.Release()

	result, err := f.cb.Execute(func() (any, error) {
		var body []byte
		innerErr := resilience.RetryWithBackoff(ctx, f.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}

			resp, err := f.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return resilience.Permanent(fmt.Errorf("source server returned status %d", resp.StatusCode))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("source server returned status %d", resp.StatusCode)
			}

			body, err = io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
			if err != nil {
				return err
			}
			if len(body) > maxDownload {
				return fmt.Errorf("source larger than %d bytes", maxDownload)
			}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return body, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrCircuitOpen{Service: f.cb.Name()}
		}
		return nil, &domain.ErrExternalService{Service: f.cb.Name(), Err: err}
	}

	span.SetAttributes(attribute.Int("source.bytes", len(result.([]byte))))
	return result.([]byte), nil
}
