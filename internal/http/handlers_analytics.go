package http

import (
	"net/http"
)

// Percentages are computed unrounded by the engine; they are rounded to two
// decimals here, at the serialization boundary.

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.engine.FinancialSummary(r.Context(), userID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSpendingByCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	spending, err := s.engine.SpendingByCategory(r.Context(), userID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range spending {
		spending[i].Percentage = spending[i].Percentage.Round(2)
	}
	writeJSON(w, http.StatusOK, spending)
}

func (s *Server) handleMonthlyTrend(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	months, err := parseMonths(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	trend, err := s.engine.MonthlyTrend(r.Context(), userID, months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.engine.BudgetStatus(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range entries {
		entries[i].PercentageUsed = entries[i].PercentageUsed.Round(2)
	}
	writeJSON(w, http.StatusOK, entries)
}
