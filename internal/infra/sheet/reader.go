// Package sheet reads raw source blocks from Excel workbooks and delimited
// text files, local or fetched over HTTP.
package sheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path"
	"unicode/utf8"

	"github.com/boddenberg/tireshop-analytics-go/internal/config"
	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/boddenberg/tireshop-analytics-go/internal/port"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/attribute"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader implements port.SheetReader.
type Reader struct {
	fetcher port.Fetcher
}

// NewReader creates a Reader. fetcher may be nil when every source is local.
func NewReader(fetcher port.Fetcher) *Reader {
	return &Reader{fetcher: fetcher}
}

// ReadBlocks opens src and returns its blocks in source order. Workbook cells
// are read raw, so dates arrive as serial numbers and amounts unformatted.
func (r *Reader) ReadBlocks(ctx context.Context, src config.SourceConfig) ([]domain.Block, error) {
	ctx, span := tracer.Start(ctx, "Reader.ReadBlocks")
	defer span.End()
	span.SetAttributes(
		attribute.String("source.name", src.Name),
		attribute.String("source.kind", src.Kind),
	)

	data, err := r.open(ctx, src)
	if err != nil {
		return nil, err
	}

	switch src.Kind {
	case config.KindCSVLines:
		return readDelimited(data, src)
	case config.KindXLSXLines, config.KindXLSXDaily:
		return readWorkbook(data, src.Sheets)
	}
	return nil, fmt.Errorf("unsupported source kind %q", src.Kind)
}

func (r *Reader) open(ctx context.Context, src config.SourceConfig) ([]byte, error) {
	if src.Remote() {
		if r.fetcher == nil {
			return nil, fmt.Errorf("no fetcher configured for remote source %s", src.Path)
		}
		return r.fetcher.Fetch(ctx, src.Path)
	}
	return os.ReadFile(src.Path)
}

func readWorkbook(data []byte, sheets []string) ([]domain.Block, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	if len(sheets) == 0 {
		sheets = f.GetSheetList()
	}

	blocks := make([]domain.Block, 0, len(sheets))
	for _, name := range sheets {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", name, err)
		}
		blocks = append(blocks, domain.Block{Name: name, Rows: rows})
	}
	return blocks, nil
}

func readDelimited(data []byte, src config.SourceConfig) ([]domain.Block, error) {
	comma, _ := utf8.DecodeRuneInString(src.Delimiter)
	if comma == utf8.RuneError {
		comma = ','
	}

	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing delimited file: %w", err)
	}
	return []domain.Block{{Name: path.Base(src.Path), Rows: rows}}, nil
}
