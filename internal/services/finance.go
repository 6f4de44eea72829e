// Package services holds the write-path business rules: input validation,
// referential checks and the store-first-then-publish flow for budget
// re-evaluation.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// Publisher emits budget check requests after expense writes. A nil Publisher
// disables publishing; writes still succeed.
type Publisher interface {
	PublishBudgetCheck(ctx context.Context, userID, categoryID int64) error
}

// FinanceService coordinates validation, persistence and async budget checks.
type FinanceService struct {
	store     *storage.Repository
	publisher Publisher
	logger    *log.Logger
}

func NewFinanceService(store *storage.Repository, publisher Publisher, logger *log.Logger) *FinanceService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &FinanceService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentService),
	}
}

// --- Users ---

func (s *FinanceService) CreateUser(ctx context.Context, name, email string) (*core.User, error) {
	u := &core.User{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.store.UserEmailExists(ctx, u.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, core.Invalidf("email %q is already registered", u.Email)
	}

	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User created",
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, u.ID)
	return u, nil
}

func (s *FinanceService) GetUser(ctx context.Context, id int64) (*core.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *FinanceService) ListUsers(ctx context.Context) ([]core.User, error) {
	return s.store.ListUsers(ctx)
}

// DeleteUser removes the user together with their transactions and budgets.
func (s *FinanceService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "User deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldUserID, id)
	return nil
}

// --- Categories ---

func (s *FinanceService) CreateCategory(ctx context.Context, name string) (*core.Category, error) {
	c := &core.Category{Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.store.CategoryNameExists(ctx, c.Name)
	if err != nil {
		return nil, fmt.Errorf("check category name: %w", err)
	}
	if exists {
		return nil, core.Invalidf("category %q already exists", c.Name)
	}

	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Category created",
		log.FieldOperation, log.OpCreate,
		log.FieldCategoryID, c.ID,
		log.FieldCategoryName, c.Name)
	return c, nil
}

func (s *FinanceService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

// DeleteCategory refuses (with an integrity error from the store) while any
// transaction or budget still references the category.
func (s *FinanceService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldCategoryID, id)
	return nil
}

// --- Transactions ---

// CreateTransactionParams is the write-side input for a new transaction.
// Date defaults to now when zero.
type CreateTransactionParams struct {
	UserID      int64
	CategoryID  int64
	Amount      decimal.Decimal
	Description string
	Type        core.TransactionType
	Date        time.Time
}

func (s *FinanceService) CreateTransaction(ctx context.Context, p CreateTransactionParams) (*core.Transaction, error) {
	if _, err := s.store.GetUser(ctx, p.UserID); err != nil {
		return nil, err
	}
	category, err := s.store.GetCategory(ctx, p.CategoryID)
	if err != nil {
		return nil, err
	}

	t := &core.Transaction{
		UserID:      p.UserID,
		CategoryID:  p.CategoryID,
		Amount:      p.Amount,
		Description: strings.TrimSpace(p.Description),
		Type:        p.Type,
		Date:        p.Date,
	}
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}
	t.CategoryName = &category.Name

	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldOperation, log.OpCreate,
		log.FieldTransactionID, t.ID,
		log.FieldUserID, t.UserID,
		log.FieldType, t.Type,
		log.FieldAmount, t.Amount)

	if t.Type == core.Expense {
		s.requestBudgetCheck(ctx, t.UserID, t.CategoryID)
	}
	return t, nil
}

func (s *FinanceService) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, f)
}

func (s *FinanceService) UpdateTransaction(ctx context.Context, id int64, p storage.UpdateTransactionParams) (*core.Transaction, error) {
	if p.CategoryID != nil {
		if _, err := s.store.GetCategory(ctx, *p.CategoryID); err != nil {
			return nil, err
		}
	}
	if p.Type != nil && !p.Type.Valid() {
		return nil, core.Invalidf("invalid transaction type %q: must be %q or %q", *p.Type, core.Income, core.Expense)
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return nil, core.Invalidf("transaction amount cannot be negative")
	}

	t, err := s.store.UpdateTransaction(ctx, id, p)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Transaction updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldTransactionID, t.ID,
		log.FieldUserID, t.UserID)

	if t.Type == core.Expense {
		s.requestBudgetCheck(ctx, t.UserID, t.CategoryID)
	}
	return t, nil
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTransactionID, id)
	return nil
}

// --- Budgets ---

// CreateBudgetParams is the write-side input for a new budget. Period
// defaults to monthly when empty.
type CreateBudgetParams struct {
	UserID     int64
	CategoryID int64
	Amount     decimal.Decimal
	Period     core.BudgetPeriod
}

func (s *FinanceService) CreateBudget(ctx context.Context, p CreateBudgetParams) (*core.Budget, error) {
	if _, err := s.store.GetUser(ctx, p.UserID); err != nil {
		return nil, err
	}
	category, err := s.store.GetCategory(ctx, p.CategoryID)
	if err != nil {
		return nil, err
	}

	b := &core.Budget{
		UserID:     p.UserID,
		CategoryID: p.CategoryID,
		Amount:     p.Amount,
		Period:     p.Period,
	}
	if b.Period == "" {
		b.Period = core.DefaultPeriod
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateBudget(ctx, b); err != nil {
		return nil, err
	}
	b.CategoryName = &category.Name

	s.logger.InfoContext(ctx, "Budget created",
		log.FieldOperation, log.OpCreate,
		log.FieldBudgetID, b.ID,
		log.FieldUserID, b.UserID,
		log.FieldPeriod, b.Period,
		log.FieldAmount, b.Amount)
	return b, nil
}

// ListBudgets returns one user's budgets, or all budgets when userID is nil.
func (s *FinanceService) ListBudgets(ctx context.Context, userID *int64) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, userID)
}

func (s *FinanceService) UpdateBudget(ctx context.Context, id int64, p storage.UpdateBudgetParams) (*core.Budget, error) {
	if p.CategoryID != nil {
		if _, err := s.store.GetCategory(ctx, *p.CategoryID); err != nil {
			return nil, err
		}
	}
	if p.Period != nil && !p.Period.Valid() {
		return nil, core.Invalidf("invalid budget period %q: must be one of %q, %q, %q", *p.Period, core.Weekly, core.Monthly, core.Yearly)
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return nil, core.Invalidf("budget amount cannot be negative")
	}

	b, err := s.store.UpdateBudget(ctx, id, p)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Budget updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldBudgetID, b.ID,
		log.FieldUserID, b.UserID)
	return b, nil
}

func (s *FinanceService) DeleteBudget(ctx context.Context, id int64) error {
	if err := s.store.DeleteBudget(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Budget deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldBudgetID, id)
	return nil
}

// requestBudgetCheck publishes best-effort: a broker outage must not fail the
// write that already committed.
func (s *FinanceService) requestBudgetCheck(ctx context.Context, userID, categoryID int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishBudgetCheck(ctx, userID, categoryID); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish budget check",
			log.FieldOperation, log.OpPublish,
			log.FieldUserID, userID,
			log.FieldCategoryID, categoryID,
			log.FieldError, err)
	}
}
