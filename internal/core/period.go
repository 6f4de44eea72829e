package core

import "time"

// Window is an inclusive [Start, End] time interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, boundaries included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// PeriodWindow resolves a budget period into a rolling window anchored at now:
// weekly is the last seven days, monthly the last calendar month, yearly the
// last calendar year. The window is not calendar-aligned; MonthRange provides
// the calendar-aligned view used by the monthly trend.
func PeriodWindow(period BudgetPeriod, now time.Time) (Window, error) {
	var start time.Time
	switch period {
	case Weekly:
		start = now.AddDate(0, 0, -7)
	case Monthly:
		start = now.AddDate(0, -1, 0)
	case Yearly:
		start = now.AddDate(-1, 0, 0)
	default:
		return Window{}, Invalidf("invalid period %q: must be one of %q, %q, %q", period, Weekly, Monthly, Yearly)
	}
	return Window{Start: start, End: now}, nil
}

// MonthRange returns the window covering one calendar month in loc.
func MonthRange(year int, month time.Month, loc *time.Location) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Window{
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}
}
