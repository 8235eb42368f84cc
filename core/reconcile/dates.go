package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout used for slot keys and inputs.
const DateLayout = "2006-01-02"

var inputDateLayouts = []string{
	DateLayout,
	"20060102",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
}

// ToDate truncates t to its calendar date, expressed as UTC midnight.
// The calendar date is read in t's own location, so callers convert into the
// property timezone once, before calling ToDate.
func ToDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey formats the calendar date of t.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysBetween returns to - from in whole calendar days.
func DaysBetween(from, to time.Time) int {
	return int(ToDate(to).Sub(ToDate(from)).Hours() / 24)
}

// ParseDate parses the date formats accepted from upstream feeds.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return ToDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
