package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

type createTransactionRequest struct {
	UserID      int64           `json:"user_id"`
	CategoryID  int64           `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Date        string          `json:"date"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var date time.Time
	if req.Date != "" {
		parsed, err := parseDate(req.Date, "date")
		if err != nil {
			writeError(w, r, err)
			return
		}
		date = parsed
	}

	t, err := s.svc.CreateTransaction(r.Context(), services.CreateTransactionParams{
		UserID:      req.UserID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Description: req.Description,
		Type:        core.TransactionType(req.Type),
		Date:        date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	transactions, err := s.svc.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

type updateTransactionRequest struct {
	CategoryID  *int64           `json:"category_id"`
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description"`
	Type        *string          `json:"type"`
	Date        *string          `json:"date"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateTransactionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	params := storage.UpdateTransactionParams{
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.Type != nil {
		t := core.TransactionType(*req.Type)
		params.Type = &t
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date, "date")
		if err != nil {
			writeError(w, r, err)
			return
		}
		params.Date = &date
	}

	t, err := s.svc.UpdateTransaction(r.Context(), id, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.svc.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
