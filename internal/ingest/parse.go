package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// TaxMultiplier converts tax-inclusive amounts to tax-exclusive ones.
var TaxMultiplier = decimal.RequireFromString("1.15")

var branchDigits = regexp.MustCompile(`[0-9]+`)

// BranchID returns the first run of ASCII digits in a free-text branch label,
// or "" when there is none.
func BranchID(label string) string {
	return branchDigits.FindString(label)
}

// Layouts whose month/day order can be misread. Excel serials are treated the
// same way.
var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"2006/01/02 15:04:05",
}

// Day-first layouts. "2" and "1" accept one or two digits.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
	"2-1-2006",
	"2.1.2006",
}

// Excel serial range: 1900-01-01 .. 9999-12-31.
const (
	minSerial = 1.0
	maxSerial = 2958465.0
)

// ParseDate parses an Excel serial number, an ISO-like string or a day-first
// date. swappable reports whether the value came from a representation whose
// day and month may have been swapped upstream.
func ParseDate(raw string) (t time.Time, swappable bool, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false, false
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < minSerial || f > maxSerial {
			return time.Time{}, false, false
		}
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return time.Time{}, false, false
		}
		return t.UTC(), true, true
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true, true
		}
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, true
		}
	}
	return time.Time{}, false, false
}

// FixSwappedDate undoes a day-first value read month-first. It only fires for
// dates on day 1 whose month equals seq, the row's 1-based position in its
// block; a January sheet read month-first turns "02/01" into February 1st on
// row 2.
func FixSwappedDate(t time.Time, seq int) (time.Time, bool) {
	if t.Day() != 1 || int(t.Month()) != seq || seq == 1 {
		return t, false
	}
	fixed := time.Date(t.Year(), time.Month(t.Day()), int(t.Month()), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	return fixed, true
}

// ParseAmount coerces a cell to a decimal. Thousands separators, currency
// symbols and other tokens are stripped; "(12.5)" is negative. A comma after
// the last point is the decimal separator ("1.234,50"), as is a lone comma not
// followed by exactly three digits ("12,5"). Anything still unparsable is zero.
func ParseAmount(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d
	}

	s = decimalComma(s)
	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(strings.Trim(b.String(), ".-"))
	if err != nil {
		return decimal.Zero
	}
	if neg || strings.HasPrefix(strings.TrimLeft(b.String(), "."), "-") {
		d = d.Neg()
	}
	return d
}

func decimalComma(s string) string {
	comma := strings.LastIndex(s, ",")
	if comma < 0 || strings.LastIndex(s, ".") > comma {
		return s
	}
	if !strings.Contains(s[:comma], ".") {
		if strings.Count(s, ",") > 1 {
			return s
		}
		digits := 0
		for _, r := range s[comma+1:] {
			if r < '0' || r > '9' {
				break
			}
			digits++
		}
		if digits == 0 || digits == 3 {
			return s
		}
	}
	return strings.ReplaceAll(s[:comma], ".", "") + "." + s[comma+1:]
}

// ExcludeTax divides a tax-inclusive amount by TaxMultiplier.
func ExcludeTax(d decimal.Decimal) decimal.Decimal {
	return d.Div(TaxMultiplier)
}
