// Package dates canonicalizes the date shapes seen in roster uploads so that
// day-level comparisons never depend on time-of-day or local offsets.
package dates

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// AnchorHour is the time of day every normalized value carries.
const AnchorHour = 12

// DisplayLayout renders dates for reports.
const DisplayLayout = "02-01-2006"

// Day-first layouts are tried before ISO layouts; Go's single-digit day and
// month verbs also accept zero padded input.
var layouts = []string{
	"2-1-2006",
	"2/1/2006",
	"2.1.2006",
	"2006-1-2",
	"2006/1/2",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
}

type timer interface {
	Time() time.Time
}

// Normalize converts a date-like value to its canonical instant: the calendar
// day at AnchorHour UTC. Strings, time.Time, *time.Time and values exposing
// Time() (such as BSON date-times) are accepted.
func Normalize(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, apperrors.NewInvalidDate("zero time")
		}
		return Anchor(val), nil
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, apperrors.NewInvalidDate("zero time")
		}
		return Anchor(*val), nil
	case string:
		return Parse(val)
	case timer:
		return Normalize(val.Time())
	case nil:
		return time.Time{}, apperrors.NewInvalidDate("")
	default:
		return time.Time{}, apperrors.NewInvalidDate(fmt.Sprintf("%v", v))
	}
}

// Parse normalizes a textual date.
func Parse(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, apperrors.NewInvalidDate(s)
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, trimmed)
		if err == nil {
			return Anchor(t), nil
		}
	}
	return time.Time{}, apperrors.NewInvalidDate(s)
}

// MustParse is Parse for fixtures and constants; it panics on bad input.
func MustParse(s string) time.Time {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Anchor keeps the calendar day of t as observed in t's own location.
func Anchor(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, AnchorHour, 0, 0, 0, time.UTC)
}

// Today returns the normalized current day in the reference location.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Anchor(now.In(loc))
}

// SameDay compares two values at day granularity.
func SameDay(a, b time.Time) bool {
	return Anchor(a).Equal(Anchor(b))
}

// Format renders DD-MM-YYYY.
func Format(t time.Time) string {
	return Anchor(t).Format(DisplayLayout)
}

// NormalizeAll normalizes every value, failing on the first bad one.
func NormalizeAll[T any](values []T) ([]time.Time, error) {
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		t, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
