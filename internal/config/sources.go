package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"
)

// Source kinds.
const (
	KindXLSXLines = "xlsx_lines" // Excel workbook, one row per line item
	KindCSVLines  = "csv_lines"  // delimited text, one row per line item
	KindXLSXDaily = "xlsx_daily" // Excel workbook, one row per branch per day
)

// AnyKey matches any branch or month in a margin-rate table.
const AnyKey = "*"

// ColumnMap locates each field in a source block. A value is either a header
// name, matched case- and whitespace-insensitively, or a 0-based column
// position written as "#3". An empty value means the field is absent.
type ColumnMap struct {
	Date     string `toml:"date"`
	Total    string `toml:"total"`
	Quantity string `toml:"quantity"`
	Cost     string `toml:"cost"`
	Invoice  string `toml:"invoice"`
	Branch   string `toml:"branch"`
	Note     string `toml:"note"`
}

// SourceConfig describes one input file and how to normalize it.
type SourceConfig struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`
	Path string `toml:"path"` // local path or http(s) URL

	Sheets    []string `toml:"sheets"`     // xlsx only; empty reads every sheet in workbook order
	HeaderRow int      `toml:"header_row"` // 0-based index of the header row
	Delimiter string   `toml:"delimiter"`  // csv only

	TaxInclusive    bool `toml:"tax_inclusive"`
	MinYear         int  `toml:"min_year"`
	FixSwappedDates bool `toml:"fix_swapped_dates"`

	Columns ColumnMap `toml:"columns"`

	// MarginRates estimates cost for daily sources without a cost column:
	// branch id -> "2006-01" -> profit margin as a fraction of sales.
	// AnyKey works as a fallback on both levels.
	MarginRates map[string]map[string]float64 `toml:"margin_rates"`
}

// Sources is the parsed sources file.
type Sources struct {
	Sources []SourceConfig `toml:"source"`
}

// MarginRate looks up the margin for a branch and month ("2006-01"),
// falling back to AnyKey for the month and then for the branch.
func (s SourceConfig) MarginRate(branch, month string) (float64, bool) {
	for _, b := range []string{branch, AnyKey} {
		months, ok := s.MarginRates[b]
		if !ok {
			continue
		}
		if r, ok := months[month]; ok {
			return r, true
		}
		if r, ok := months[AnyKey]; ok {
			return r, true
		}
	}
	return 0, false
}

// Remote reports whether the source is fetched over HTTP.
func (s SourceConfig) Remote() bool {
	return strings.HasPrefix(s.Path, "http://") || strings.HasPrefix(s.Path, "https://")
}

// LoadSources reads and validates a TOML sources file. Relative local paths
// are resolved against the directory of the file.
func LoadSources(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}
	sources, err := ParseSources(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range sources {
		s := &sources[i]
		if !s.Remote() && !filepath.IsAbs(s.Path) {
			s.Path = filepath.Join(dir, s.Path)
		}
	}
	return sources, nil
}

// ParseSources decodes a sources document, fills defaults and validates it.
// Unknown keys are rejected so typos do not silently change normalization.
func ParseSources(data []byte) ([]SourceConfig, error) {
	var doc Sources
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys in sources file:\n%s", strict.String())
		}
		return nil, fmt.Errorf("decoding sources file: %w", err)
	}
	if len(doc.Sources) == 0 {
		return nil, errors.New("no [[source]] entries")
	}

	seen := make(map[string]struct{}, len(doc.Sources))
	for i := range doc.Sources {
		s := &doc.Sources[i]
		s.applyDefaults()
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("source #%d: %w", i+1, err)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("source #%d: duplicate name %q", i+1, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return doc.Sources, nil
}

func (s *SourceConfig) applyDefaults() {
	if s.Kind == KindCSVLines && s.Delimiter == "" {
		s.Delimiter = ","
	}

	c := &s.Columns
	def := func(field *string, name string) {
		if *field == "" {
			*field = name
		}
	}
	def(&c.Date, "date")
	def(&c.Total, "total")
	def(&c.Branch, "warehouse")
	def(&c.Cost, "cost")
	if s.Kind != KindXLSXDaily {
		def(&c.Quantity, "qty")
		def(&c.Invoice, "invoice_no")
		def(&c.Note, "note")
	}
}

// Validate checks a single source entry.
func (s SourceConfig) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("name is required")
	}
	switch s.Kind {
	case KindXLSXLines, KindCSVLines, KindXLSXDaily:
	default:
		return fmt.Errorf("%s: unknown kind %q", s.Name, s.Kind)
	}
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("%s: path is required", s.Name)
	}
	if s.HeaderRow < 0 {
		return fmt.Errorf("%s: header_row must be >= 0", s.Name)
	}
	if s.Kind == KindCSVLines && utf8.RuneCountInString(s.Delimiter) != 1 {
		return fmt.Errorf("%s: delimiter must be a single character", s.Name)
	}
	if s.Kind != KindXLSXDaily && len(s.MarginRates) > 0 {
		return fmt.Errorf("%s: margin_rates only apply to %s sources", s.Name, KindXLSXDaily)
	}
	for branch, months := range s.MarginRates {
		for month, r := range months {
			if r < -1 || r > 1 {
				return fmt.Errorf("%s: margin rate %s/%s = %v is outside [-1, 1]", s.Name, branch, month, r)
			}
		}
	}
	return nil
}
