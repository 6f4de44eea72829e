package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const dateOnly = "2006-01-02"

// parseID reads a positive integer path value.
func parseID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, core.Invalidf("invalid %s %q", name, raw)
	}
	return id, nil
}

// parseDate accepts a date-only or RFC 3339 timestamp.
func parseDate(raw, name string) (time.Time, error) {
	if t, err := time.Parse(dateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, core.Invalidf("invalid %s %q: want YYYY-MM-DD or RFC 3339", name, raw)
	}
	return t, nil
}

// parseTransactionFilter reads the list query parameters. A date-only
// end_date is widened to the end of that day so the bound stays inclusive.
func parseTransactionFilter(r *http.Request) (storage.TransactionFilter, error) {
	var f storage.TransactionFilter
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("user_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, core.Invalidf("invalid user_id %q", raw)
		}
		f.UserID = &id
	}
	if raw := strings.TrimSpace(q.Get("category_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, core.Invalidf("invalid category_id %q", raw)
		}
		f.CategoryID = &id
	}
	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		t := core.TransactionType(raw)
		if !t.Valid() {
			return f, core.Invalidf("invalid type %q: must be %q or %q", raw, core.Income, core.Expense)
		}
		f.Type = &t
	}
	if raw := strings.TrimSpace(q.Get("start_date")); raw != "" {
		from, err := parseDate(raw, "start_date")
		if err != nil {
			return f, err
		}
		f.From = &from
	}
	if raw := strings.TrimSpace(q.Get("end_date")); raw != "" {
		to, err := parseDate(raw, "end_date")
		if err != nil {
			return f, err
		}
		if len(raw) == len(dateOnly) {
			end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
			to = end
		}
		f.To = &to
	}
	return f, nil
}

// parsePeriod reads the period query parameter, defaulting to monthly.
func parsePeriod(r *http.Request) (core.BudgetPeriod, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("period"))
	if raw == "" {
		return core.DefaultPeriod, nil
	}
	p := core.BudgetPeriod(raw)
	if !p.Valid() {
		return "", core.Invalidf("invalid period %q: must be one of %q, %q, %q", raw, core.Weekly, core.Monthly, core.Yearly)
	}
	return p, nil
}

// parseMonths reads the months query parameter, defaulting to 6.
func parseMonths(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("months"))
	if raw == "" {
		return 6, nil
	}
	months, err := strconv.Atoi(raw)
	if err != nil || months < 1 {
		return 0, core.Invalidf("invalid months %q: must be a positive integer", raw)
	}
	return months, nil
}
