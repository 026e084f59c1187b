// Package ingest turns raw source blocks into normalized line items.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/boddenberg/tireshop-analytics-go/internal/config"
	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
	"github.com/boddenberg/tireshop-analytics-go/internal/port"

	"github.com/shopspring/decimal"
)

// Load reads one configured source and normalizes every row, preserving
// source order across and within blocks. Rows without a usable date or dated
// before the source's min_year are dropped and tallied in the report; rows
// without a branch are kept but counted as unattributable. A dropped row that
// carried an invoice marker still opens its invoice: the next kept row is
// flagged NewInvoice.
//
// Read failures and blocks missing a required column are returned as
// *domain.ErrSourceUnavailable.
func Load(ctx context.Context, reader port.SheetReader, src config.SourceConfig) ([]domain.LineItem, domain.LoadReport, error) {
	report := domain.LoadReport{Source: src.Name, Kind: src.Kind}

	blocks, err := reader.ReadBlocks(ctx, src)
	if err != nil {
		return nil, report, &domain.ErrSourceUnavailable{Source: src.Name, Path: src.Path, Err: err}
	}

	items := make([]domain.LineItem, 0)
	var boundary bool
	for _, b := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}

		cols, err := resolveColumns(b, src)
		if err != nil {
			// a workbook read in full may carry unrelated sheets
			if len(src.Sheets) == 0 && len(blocks) > 1 && src.Kind != config.KindCSVLines {
				report.BlocksSkipped++
				continue
			}
			return nil, report, &domain.ErrSourceUnavailable{Source: src.Name, Path: src.Path, Err: err}
		}
		report.Blocks++
		items = normalizeBlock(items, b, src, cols, &report, &boundary)
	}
	return items, report, nil
}

// columns holds resolved 0-based positions; -1 means absent.
type columns struct {
	date, total, quantity, cost, invoice, branch, note int
}

func resolveColumns(b domain.Block, src config.SourceConfig) (columns, error) {
	var header []string
	if src.HeaderRow < len(b.Rows) {
		header = b.Rows[src.HeaderRow]
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var missing []string
	find := func(ref string, required bool) int {
		if ref == "" {
			if required {
				missing = append(missing, "(unmapped)")
			}
			return -1
		}
		if strings.HasPrefix(ref, "#") {
			if n, err := strconv.Atoi(ref[1:]); err == nil && n >= 0 {
				return n
			}
		}
		if i, ok := index[normalizeHeader(ref)]; ok {
			return i
		}
		if required {
			missing = append(missing, ref)
		}
		return -1
	}

	m := src.Columns
	cols := columns{
		date:     find(m.Date, true),
		total:    find(m.Total, true),
		branch:   find(m.Branch, true),
		quantity: find(m.Quantity, false),
		cost:     find(m.Cost, false),
		invoice:  find(m.Invoice, false),
		note:     find(m.Note, false),
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("block %q: required columns not found: %s", b.Name, strings.Join(missing, ", "))
	}
	return cols, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// boundary carries a pending invoice start from a dropped row to the next
// kept one, across blocks of the same source.
func normalizeBlock(items []domain.LineItem, b domain.Block, src config.SourceConfig, cols columns, report *domain.LoadReport, boundary *bool) []domain.LineItem {
	daily := src.Kind == config.KindXLSXDaily

	for i := src.HeaderRow + 1; i < len(b.Rows); i++ {
		row := b.Rows[i]
		seq := i - src.HeaderRow
		if blankRow(row) {
			continue
		}
		report.RowsRead++
		marker := cell(row, cols.invoice)

		date, swappable, ok := ParseDate(cell(row, cols.date))
		if !ok {
			report.DroppedNoDate++
			*boundary = *boundary || marker != ""
			continue
		}
		if swappable && src.FixSwappedDates {
			var fixed bool
			if date, fixed = FixSwappedDate(date, seq); fixed {
				report.DatesCorrected++
			}
		}
		if src.MinYear > 0 && date.Year() < src.MinYear {
			report.DroppedCutoff++
			*boundary = *boundary || marker != ""
			continue
		}

		item := domain.LineItem{
			Source:        src.Name,
			Block:         b.Name,
			Row:           seq,
			Date:          date,
			BranchID:      BranchID(cell(row, cols.branch)),
			Marker:        marker,
			NewInvoice:    *boundary && marker == "",
			Note:          cell(row, cols.note),
			Preaggregated: daily,
		}

		total := ParseAmount(cell(row, cols.total))
		// a daily total is one row regardless of any mapped quantity
		qty := decimal.NewFromInt(1)
		if cols.quantity >= 0 && !daily {
			qty = ParseAmount(cell(row, cols.quantity))
		}
		costRaw := cell(row, cols.cost)
		unitCost := ParseAmount(costRaw)

		if src.TaxInclusive {
			total = ExcludeTax(total)
			unitCost = ExcludeTax(unitCost)
		}

		if daily && costRaw == "" {
			if rate, ok := src.MarginRate(item.BranchID, date.Format("2006-01")); ok {
				unitCost = total.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(rate)))
				item.CostEstimated = true
				report.CostsEstimated++
			}
		}

		item.Total = total.InexactFloat64()
		item.Quantity = qty.InexactFloat64()
		item.UnitCost = unitCost.InexactFloat64()

		if !item.Attributable() {
			report.Unattributable++
		}
		report.Accepted++
		*boundary = false
		items = append(items, item)
	}
	return items
}
