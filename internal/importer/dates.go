package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"commission-service/internal/models"
)

// trustedYearFloor is the business rule cutoff: issued dates before 2020
// are known to be systematically corrupted in the source ERP and are not
// trusted for commission attribution. The separately maintained
// Year-month column is used instead.
const trustedYearFloor = 2020

// ResolveOptions controls row date resolution. Strict mode additionally
// rejects future issued dates; bulk re-import paths leave it off.
type ResolveOptions struct {
	Strict bool
	Now    time.Time
}

// Resolution is the outcome of resolving one row's commission date.
type Resolution struct {
	Month  string
	Year   int
	Date   time.Time
	Method string
}

var issuedDateLayouts = []string{
	"01-02-2006 15:04:05",
	"01-02-2006 15:04",
	"01-02-2006",
}

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "jun": time.June, "jul": time.July,
	"aug": time.August, "sep": time.September, "sept": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ResolveRowDate resolves a row's commission date. The issued date is the
// precise field and is tried first, but it is never trusted blindly: a
// parse failure or a pre-2020 year falls back to the Year-month column,
// and when both fail the row must be skipped rather than defaulted.
func ResolveRowDate(row Row, opts ResolveOptions) Resolution {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	if d, ok := parseIssuedDate(row[FieldIssuedDate], opts.Strict, now); ok {
		if d.Year() >= trustedYearFloor {
			return Resolution{
				Month:  d.Format("2006-01"),
				Year:   d.Year(),
				Date:   d,
				Method: models.DateMethodIssued,
			}
		}
	}

	if d, ok := parseYearMonth(row[FieldYearMonth]); ok {
		return Resolution{
			Month:  d.Format("2006-01"),
			Year:   d.Year(),
			Date:   d,
			Method: models.DateMethodYearMonth,
		}
	}

	return Resolution{Method: models.DateMethodFailed}
}

func parseIssuedDate(raw string, strict bool, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	// Fishbowl exports flip between slash and dash separators.
	raw = strings.ReplaceAll(raw, "/", "-")

	for _, layout := range issuedDateLayouts {
		d, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if d.Year() < 2000 || d.Year() > now.Year()+1 {
			return time.Time{}, false
		}
		if strict && d.After(now) {
			return time.Time{}, false
		}
		return d, true
	}
	return time.Time{}, false
}

// parseYearMonth accepts "December 2025" and the abbreviated "Dec-25"
// variant, synthesizing the first of the month.
func parseYearMonth(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '-'
	})
	if len(parts) != 2 {
		return time.Time{}, false
	}

	month, ok := monthsByName[strings.ToLower(parts[0])]
	if !ok {
		return time.Time{}, false
	}

	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	switch {
	case year >= 1000:
		// four-digit year, use as-is
	case year >= 0 && year <= 50:
		year += 2000
	case year < 100:
		year += 1900
	default:
		return time.Time{}, false
	}

	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
}

// FormatPeriod returns the inclusive [start, end] date range for a
// "YYYY-MM" commission month.
func FormatPeriod(month string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid commission month %q: %w", month, err)
	}
	end := start.AddDate(0, 1, -1)
	return start, end, nil
}
