package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// ErrInvalidDate indicates a malformed ISO date in a filter.
var ErrInvalidDate = errors.New("reports: invalid date")

// DateRange is an inclusive calendar window. A zero bound is open on that side.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseDateRange builds a DateRange from YYYY-MM-DD strings; empty strings leave the bound open.
func ParseDateRange(start, end string) (DateRange, error) {
	var rng DateRange
	var err error
	if rng.Start, err = parseBound(start); err != nil {
		return DateRange{}, fmt.Errorf("start: %w", err)
	}
	if rng.End, err = parseBound(end); err != nil {
		return DateRange{}, fmt.Errorf("end: %w", err)
	}
	return rng, nil
}

func parseBound(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dayLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDate, raw)
	}
	return t, nil
}

// Unbounded reports whether neither side is set.
func (r DateRange) Unbounded() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Inverted reports whether both bounds are set and Start is after End.
func (r DateRange) Inverted() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.StartOfDay().After(r.EndOfDay())
}

// StartOfDay returns Start truncated to 00:00:00.
func (r DateRange) StartOfDay() time.Time {
	if r.Start.IsZero() {
		return time.Time{}
	}
	return startOfDay(r.Start)
}

// EndOfDay returns End normalised to 23:59:59.999 of that day.
func (r DateRange) EndOfDay() time.Time {
	if r.End.IsZero() {
		return time.Time{}
	}
	return startOfDay(r.End).Add(24*time.Hour - time.Millisecond)
}

// Contains reports whether t falls inside the window.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.StartOfDay()) {
		return false
	}
	if !r.End.IsZero() && t.After(r.EndOfDay()) {
		return false
	}
	return true
}

// String renders the range as start..end with "*" for open bounds.
func (r DateRange) String() string {
	return formatBound(r.Start) + ".." + formatBound(r.End)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "*"
	}
	return t.Format(dayLayout)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FilterByDate keeps the items whose date falls inside rng.
//
// Items whose date cannot be resolved are kept. When rng is unbounded the
// input slice itself is returned; an inverted range selects nothing. The
// input is never modified and relative order is preserved.
func FilterByDate[T any](items []T, rng DateRange, dateOf func(T) (time.Time, bool)) []T {
	if rng.Unbounded() {
		return items
	}
	if rng.Inverted() {
		return []T{}
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		at, ok := dateOf(item)
		if !ok || rng.Contains(at) {
			out = append(out, item)
		}
	}
	return out
}
