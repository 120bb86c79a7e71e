package reconcile

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/teranos/softwaremap/errors"
)

// rawDatePattern accepts the shapes the query service returns: ISO dates with
// optional sign, year or year-month precision, and an ignored time part.
// Wikidata encodes reduced precision with zero month/day ("1995-00-00").
var rawDatePattern = regexp.MustCompile(`^([+-]?\d{1,9})(?:-(\d{2})(?:-(\d{2}))?)?(?:T[0-9:.]+(?:Z|[+-]\d{2}:?\d{2})?)?$`)

// ParseDate parses a raw date literal into a UTC calendar date at midnight
func ParseDate(raw string) (time.Time, error) {
	m := rawDatePattern.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, errors.NewInvalidDateError(raw, nil)
	}

	year, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, errors.NewInvalidDateError(raw, err)
	}
	month := atoiOr(m[2], 1)
	day := atoiOr(m[3], 1)
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	if month > 12 {
		return time.Time{}, errors.NewInvalidDateError(raw, errors.Newf("month %d out of range", month))
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalises Feb 30 into March; reject instead
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, errors.NewInvalidDateError(raw, errors.Newf("day %d out of range for %d-%02d", day, year, month))
	}
	return t, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD, with a leading minus for BCE years
func FormatDate(t time.Time) string {
	y := t.Year()
	if y < 0 {
		return fmt.Sprintf("-%04d-%02d-%02d", -y, int(t.Month()), t.Day())
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, int(t.Month()), t.Day())
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
