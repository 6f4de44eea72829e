package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

type createBudgetRequest struct {
	UserID     int64           `json:"user_id"`
	CategoryID int64           `json:"category_id"`
	Amount     decimal.Decimal `json:"amount"`
	Period     string          `json:"period"`
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	b, err := s.svc.CreateBudget(r.Context(), services.CreateBudgetParams{
		UserID:     req.UserID,
		CategoryID: req.CategoryID,
		Amount:     req.Amount,
		Period:     core.BudgetPeriod(req.Period),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	var userID *int64
	if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, core.Invalidf("invalid user_id %q", raw))
			return
		}
		userID = &id
	}

	budgets, err := s.svc.ListBudgets(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if budgets == nil {
		budgets = []core.Budget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

type updateBudgetRequest struct {
	CategoryID *int64           `json:"category_id"`
	Amount     *decimal.Decimal `json:"amount"`
	Period     *string          `json:"period"`
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateBudgetRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	params := storage.UpdateBudgetParams{
		CategoryID: req.CategoryID,
		Amount:     req.Amount,
	}
	if req.Period != nil {
		p := core.BudgetPeriod(*req.Period)
		params.Period = &p
	}

	b, err := s.svc.UpdateBudget(r.Context(), id, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.svc.DeleteBudget(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
