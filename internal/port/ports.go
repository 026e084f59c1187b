// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/tireshop-analytics-go/internal/config"
	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
)

// SheetReader returns the raw blocks (worksheets or one delimited file) of a
// configured source, rows in source order.
type SheetReader interface {
	ReadBlocks(ctx context.Context, src config.SourceConfig) ([]domain.Block, error)
}

// Fetcher downloads a remote source file.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
