package reminders

import (
	"strconv"
	"strings"
	"time"
)

// nextActionOffsetMonths is how far out the next oil service is projected from
// a logged reading date. Product-chosen constant; do not tune without a
// matching UI change.
const nextActionOffsetMonths = 8

// NextActionDate projects the next service date from a raw YYYY-MM-DD reading
// date. Returns false when the input is not a well-formed date.
func NextActionDate(raw string) (time.Time, bool) {
	y, m, d, ok := splitDate(raw)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m+nextActionOffsetMonths), d, 0, 0, 0, 0, time.UTC), true
}

// FormatNextActionDate renders the projected service date for display, or
// "N/A" when the input date is absent or malformed.
func FormatNextActionDate(raw string) string {
	next, ok := NextActionDate(raw)
	if !ok {
		return "N/A"
	}
	return next.Format("1/2/2006")
}

// NextActionOverdue reports whether the projected service date has passed,
// comparing whole UTC days.
func NextActionOverdue(raw string, now time.Time) bool {
	next, ok := NextActionDate(raw)
	if !ok {
		return false
	}
	today := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return today.After(next)
}

func splitDate(raw string) (year, month, day int, ok bool) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	y, errY := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	d, errD := strconv.Atoi(parts[2])
	if errY != nil || errM != nil || errD != nil {
		return 0, 0, 0, false
	}
	return y, m, d, true
}
