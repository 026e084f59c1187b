package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/boddenberg/tireshop-analytics-go/internal/domain"
)

var (
	yearRe  = regexp.MustCompile(`^(\d{4})$`)
	monthRe = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	weekRe  = regexp.MustCompile(`^(\d{4})-[Ww](\d{1,2})$`)
	dayRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ParsePeriod turns a label into an inclusive date range.
// Accepted labels: "2026" (year, monthly buckets), "2026-01" (month),
// "2026-W03" (ISO week) and "2026-01-15" (single day).
func ParsePeriod(label string) (domain.Period, error) {
	switch {
	case yearRe.MatchString(label):
		y, _ := strconv.Atoi(label)
		from := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		return domain.Period{Label: label, From: from, To: from.AddDate(1, 0, -1), Granularity: domain.Month}, nil

	case monthRe.MatchString(label):
		m := monthRe.FindStringSubmatch(label)
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if mo < 1 || mo > 12 {
			return domain.Period{}, &domain.ErrValidation{Field: "period", Message: fmt.Sprintf("invalid month in %q", label)}
		}
		from := time.Date(y, time.Month(mo), 1, 0, 0, 0, 0, time.UTC)
		return domain.Period{Label: from.Format("2006-01"), From: from, To: from.AddDate(0, 1, -1), Granularity: domain.Month}, nil

	case weekRe.MatchString(label):
		m := weekRe.FindStringSubmatch(label)
		y, _ := strconv.Atoi(m[1])
		w, _ := strconv.Atoi(m[2])
		from, ok := isoWeekStart(y, w)
		if !ok {
			return domain.Period{}, &domain.ErrValidation{Field: "period", Message: fmt.Sprintf("invalid ISO week in %q", label)}
		}
		return domain.Period{Label: fmt.Sprintf("%04d-W%02d", y, w), From: from, To: from.AddDate(0, 0, 6), Granularity: domain.Week}, nil

	case dayRe.MatchString(label):
		d, err := time.Parse("2006-01-02", label)
		if err != nil {
			return domain.Period{}, &domain.ErrValidation{Field: "period", Message: fmt.Sprintf("invalid date %q", label)}
		}
		return domain.Period{Label: label, From: d, To: d, Granularity: domain.Day}, nil
	}
	return domain.Period{}, &domain.ErrValidation{Field: "period", Message: fmt.Sprintf("unrecognised period %q", label)}
}

// RangePeriod builds a custom inclusive range with daily buckets.
func RangePeriod(from, to time.Time) (domain.Period, error) {
	if from.IsZero() || to.IsZero() {
		return domain.Period{}, &domain.ErrValidation{Field: "range", Message: "both ends are required"}
	}
	if to.Before(from) {
		return domain.Period{}, &domain.ErrValidation{Field: "range", Message: "end is before start"}
	}
	return domain.Period{
		Label:       from.Format("2006-01-02") + ".." + to.Format("2006-01-02"),
		From:        dayOf(from),
		To:          dayOf(to),
		Granularity: domain.Day,
	}, nil
}

// PreviousPeriod returns the period of the same length immediately before p.
func PreviousPeriod(p domain.Period) domain.Period {
	switch {
	case yearRe.MatchString(p.Label):
		prev, _ := ParsePeriod(strconv.Itoa(p.From.Year() - 1))
		return prev
	case monthRe.MatchString(p.Label):
		prev, _ := ParsePeriod(p.From.AddDate(0, -1, 0).Format("2006-01"))
		return prev
	case weekRe.MatchString(p.Label):
		start := p.From.AddDate(0, 0, -7)
		y, w := start.ISOWeek()
		prev, _ := ParsePeriod(fmt.Sprintf("%04d-W%02d", y, w))
		return prev
	}
	days := int(p.To.Sub(p.From).Hours()/24) + 1
	to := p.From.AddDate(0, 0, -1)
	from := to.AddDate(0, 0, -(days - 1))
	if days == 1 {
		return domain.Period{Label: to.Format("2006-01-02"), From: to, To: to, Granularity: domain.Day}
	}
	prev, _ := RangePeriod(from, to)
	return prev
}

// PeriodFilter returns a ledger filter covering p for the given branches.
func PeriodFilter(p domain.Period, branches []string) Filter {
	return Filter{Branches: branches, From: p.From, To: p.To}
}

func isoWeekStart(year, week int) (time.Time, bool) {
	if week < 1 || week > 53 {
		return time.Time{}, false
	}
	// January 4th is always in ISO week 1.
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	start := jan4.AddDate(0, 0, -offset+(week-1)*7)
	if y, w := start.ISOWeek(); y != year || w != week {
		return time.Time{}, false
	}
	return start, true
}
