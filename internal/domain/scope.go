package domain

import (
	"strings"
	"time"
)

// Scope is the temporal scope the retrieval gate assigns to a question.
type Scope string

const (
	ScopeToday     Scope = "TODAY"
	ScopeYesterday Scope = "YESTERDAY"
	ScopeWeek      Scope = "WEEK"
	ScopeMonth     Scope = "MONTH"
	ScopeAll       Scope = "ALL"
)

// ParseScope extracts a scope from free-form model output. Unrecognised text maps to ScopeAll.
func ParseScope(s string) Scope {
	upper := strings.ToUpper(s)
	for _, sc := range []Scope{ScopeYesterday, ScopeToday, ScopeWeek, ScopeMonth} {
		if strings.Contains(upper, string(sc)) {
			return sc
		}
	}
	return ScopeAll
}

// DateRange is an inclusive range of calendar days. The zero value means no filtering.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range applies no filtering.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether day falls within the range, comparing calendar dates only.
func (r DateRange) Contains(day time.Time) bool {
	if r.IsZero() {
		return true
	}
	d := dayKey(day)
	return d >= dayKey(r.Start) && d <= dayKey(r.End)
}

// String renders the range for user-facing messages.
func (r DateRange) String() string {
	if r.IsZero() {
		return "all time"
	}
	start, end := r.Start.Format(DateLayout), r.End.Format(DateLayout)
	if start == end {
		return start
	}
	return start + " to " + end
}

// ResolveRange maps a scope onto concrete dates relative to now.
func ResolveRange(scope Scope, now time.Time) DateRange {
	today := truncateDay(now)
	switch scope {
	case ScopeToday:
		return DateRange{Start: today, End: today}
	case ScopeYesterday:
		y := today.AddDate(0, 0, -1)
		return DateRange{Start: y, End: y}
	case ScopeWeek:
		offset := (int(today.Weekday()) + 6) % 7 // days since Monday
		return DateRange{Start: today.AddDate(0, 0, -offset), End: today}
	case ScopeMonth:
		return DateRange{Start: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), End: today}
	default:
		return DateRange{}
	}
}

// SingleDay returns a range covering exactly one day.
func SingleDay(day time.Time) DateRange {
	d := truncateDay(day)
	return DateRange{Start: d, End: d}
}

// dayKey compares calendar dates independent of location.
func dayKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
