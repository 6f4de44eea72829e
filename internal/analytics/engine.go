// Package analytics derives read-only aggregates from transaction and budget
// records: financial summaries, category breakdowns, monthly trends and
// budget status. It never writes to the store.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Store is the read access the engine needs. *storage.Repository satisfies
// it; tests may substitute their own.
type Store interface {
	ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error)
	ListBudgets(ctx context.Context, userID *int64) ([]core.Budget, error)
}

const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusOver    = "over"
)

var hundred = decimal.NewFromInt(100)

// Engine computes aggregates over a window anchored at Now(). Percentages
// are kept unrounded; callers round at presentation time.
type Engine struct {
	store Store

	// Now is the window anchor, overridable in tests.
	Now func() time.Time

	// WarnThreshold is the budget utilization percentage at and above
	// which status becomes "warning". Above 100 it is always "over".
	WarnThreshold decimal.Decimal
}

func NewEngine(store Store) *Engine {
	return &Engine{
		store:         store,
		Now:           time.Now,
		WarnThreshold: decimal.NewFromInt(80),
	}
}

type Summary struct {
	Period           core.BudgetPeriod `json:"period"`
	TotalIncome      decimal.Decimal   `json:"total_income"`
	TotalExpense     decimal.Decimal   `json:"total_expense"`
	NetBalance       decimal.Decimal   `json:"net_balance"`
	TransactionCount int               `json:"transaction_count"`
}

// FinancialSummary sums the user's income and expenses over the rolling
// window the period resolves to. An empty window yields all zeros.
func (e *Engine) FinancialSummary(ctx context.Context, userID int64, period core.BudgetPeriod) (*Summary, error) {
	win, err := core.PeriodWindow(period, e.Now())
	if err != nil {
		return nil, err
	}

	transactions, err := e.store.ListTransactions(ctx, storage.TransactionFilter{
		UserID: &userID,
		From:   &win.Start,
		To:     &win.End,
	})
	if err != nil {
		return nil, err
	}

	s := &Summary{Period: period}
	for _, t := range transactions {
		switch t.Type {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case core.Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
		}
	}
	s.NetBalance = s.TotalIncome.Sub(s.TotalExpense)
	s.TransactionCount = len(transactions)
	return s, nil
}

type CategorySpend struct {
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// SpendingByCategory breaks the user's expenses in the period window down by
// category, with each group's share of the grand total. When nothing was
// spent every percentage is zero.
func (e *Engine) SpendingByCategory(ctx context.Context, userID int64, period core.BudgetPeriod) ([]CategorySpend, error) {
	win, err := core.PeriodWindow(period, e.Now())
	if err != nil {
		return nil, err
	}

	expense := core.Expense
	transactions, err := e.store.ListTransactions(ctx, storage.TransactionFilter{
		UserID: &userID,
		Type:   &expense,
		From:   &win.Start,
		To:     &win.End,
	})
	if err != nil {
		return nil, err
	}

	byCategory := make(map[int64]*CategorySpend)
	var grandTotal decimal.Decimal
	for _, t := range transactions {
		g, ok := byCategory[t.CategoryID]
		if !ok {
			g = &CategorySpend{CategoryID: t.CategoryID}
			if t.CategoryName != nil {
				g.CategoryName = *t.CategoryName
			}
			byCategory[t.CategoryID] = g
		}
		g.TotalAmount = g.TotalAmount.Add(t.Amount)
		grandTotal = grandTotal.Add(t.Amount)
	}

	result := make([]CategorySpend, 0, len(byCategory))
	for _, g := range byCategory {
		if grandTotal.IsPositive() {
			g.Percentage = g.TotalAmount.Div(grandTotal).Mul(hundred)
		}
		result = append(result, *g)
	}

	// Largest spender first; name breaks ties deterministically.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].TotalAmount.Equal(result[j].TotalAmount) {
			return result[i].TotalAmount.GreaterThan(result[j].TotalAmount)
		}
		return result[i].CategoryName < result[j].CategoryName
	})
	return result, nil
}

type MonthPoint struct {
	MonthLabel   string          `json:"month_label"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
}

// MonthlyTrend reports income and expense totals for the last months
// calendar months including the current one, oldest first. Months without
// transactions report zeros.
func (e *Engine) MonthlyTrend(ctx context.Context, userID int64, months int) ([]MonthPoint, error) {
	if months < 1 {
		return nil, core.Invalidf("months must be at least 1, got %d", months)
	}

	now := e.Now()
	current := core.MonthRange(now.Year(), now.Month(), now.Location())
	oldest := current.Start.AddDate(0, -(months - 1), 0)

	// The window runs to the end of the current month, not to now: each
	// month's totals cover the whole calendar month, including transactions
	// dated after the query instant.
	transactions, err := e.store.ListTransactions(ctx, storage.TransactionFilter{
		UserID: &userID,
		From:   &oldest,
		To:     &current.End,
	})
	if err != nil {
		return nil, err
	}

	type bucket struct{ income, expense decimal.Decimal }
	buckets := make(map[string]*bucket, months)

	points := make([]MonthPoint, 0, months)
	for i := 0; i < months; i++ {
		m := oldest.AddDate(0, i, 0)
		label := m.Format("Jan 2006")
		points = append(points, MonthPoint{MonthLabel: label})
		buckets[label] = &bucket{}
	}

	for _, t := range transactions {
		b, ok := buckets[t.Date.In(now.Location()).Format("Jan 2006")]
		if !ok {
			continue
		}
		switch t.Type {
		case core.Income:
			b.income = b.income.Add(t.Amount)
		case core.Expense:
			b.expense = b.expense.Add(t.Amount)
		}
	}

	for i := range points {
		b := buckets[points[i].MonthLabel]
		points[i].TotalIncome = b.income
		points[i].TotalExpense = b.expense
	}
	return points, nil
}

type BudgetStatusEntry struct {
	BudgetID       int64             `json:"budget_id"`
	CategoryID     int64             `json:"category_id"`
	CategoryName   string            `json:"category_name"`
	Period         core.BudgetPeriod `json:"period"`
	BudgetAmount   decimal.Decimal   `json:"budget_amount"`
	SpentAmount    decimal.Decimal   `json:"spent_amount"`
	Remaining      decimal.Decimal   `json:"remaining"`
	PercentageUsed decimal.Decimal   `json:"percentage_used"`
	Status         string            `json:"status"`
}

// BudgetStatus evaluates every budget the user owns against the expenses in
// its category over the window its period resolves to. A zero budget amount
// reports zero utilization and status "ok".
func (e *Engine) BudgetStatus(ctx context.Context, userID int64) ([]BudgetStatusEntry, error) {
	budgets, err := e.store.ListBudgets(ctx, &userID)
	if err != nil {
		return nil, err
	}

	entries := make([]BudgetStatusEntry, 0, len(budgets))
	for _, b := range budgets {
		win, err := core.PeriodWindow(b.Period, e.Now())
		if err != nil {
			return nil, err
		}

		expense := core.Expense
		transactions, err := e.store.ListTransactions(ctx, storage.TransactionFilter{
			UserID:     &b.UserID,
			CategoryID: &b.CategoryID,
			Type:       &expense,
			From:       &win.Start,
			To:         &win.End,
		})
		if err != nil {
			return nil, err
		}

		var spent decimal.Decimal
		for _, t := range transactions {
			spent = spent.Add(t.Amount)
		}

		entry := BudgetStatusEntry{
			BudgetID:     b.ID,
			CategoryID:   b.CategoryID,
			Period:       b.Period,
			BudgetAmount: b.Amount,
			SpentAmount:  spent,
			Remaining:    b.Amount.Sub(spent),
			Status:       StatusOK,
		}
		if b.CategoryName != nil {
			entry.CategoryName = *b.CategoryName
		}
		if b.Amount.IsPositive() {
			entry.PercentageUsed = spent.Div(b.Amount).Mul(hundred)
		}
		switch {
		case entry.PercentageUsed.GreaterThan(hundred):
			entry.Status = StatusOver
		case entry.PercentageUsed.GreaterThanOrEqual(e.WarnThreshold):
			entry.Status = StatusWarning
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
