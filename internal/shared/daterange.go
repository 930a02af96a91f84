package shared

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDateRange reads an inclusive [from, to] range from query values. Both
// accept a calendar date or an RFC 3339 timestamp; a calendar-date "to"
// covers the whole day. Both must be present together.
func ParseDateRange(fromRaw, toRaw string) (from, to time.Time, ok bool, err error) {
	if fromRaw == "" && toRaw == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if fromRaw == "" || toRaw == "" {
		return time.Time{}, time.Time{}, false, fmt.Errorf("%w: from and to must be given together", ErrBadRequest)
	}
	from, _, err = parseBound(fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	to, dateOnly, err := parseBound(toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if dateOnly {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, false, fmt.Errorf("%w: from is after to", ErrBadRequest)
	}
	return from, to, true, nil
}

func parseBound(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: invalid date %q", ErrBadRequest, raw)
	}
	return t.UTC(), false, nil
}

// MonthBounds returns the first and last instant of the month containing t.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}
