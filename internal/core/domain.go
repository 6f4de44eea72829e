package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Weekly  BudgetPeriod = "weekly"
	Monthly BudgetPeriod = "monthly"
	Yearly  BudgetPeriod = "yearly"

	// DefaultPeriod is applied when a budget is created without a period.
	DefaultPeriod = Monthly
)

type (
	TransactionType string

	BudgetPeriod string

	User struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Category is a shared, global taxonomy entry. It is not owned by a user.
	Category struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	Transaction struct {
		ID         int64 `json:"id"`
		UserID     int64 `json:"user_id"`
		CategoryID int64 `json:"category_id"`
		// CategoryName is denormalized at read time; nil if the category
		// relation cannot be resolved.
		CategoryName *string         `json:"category_name"`
		Amount       decimal.Decimal `json:"amount"`
		Description  string          `json:"description"`
		Type         TransactionType `json:"type"`
		Date         time.Time       `json:"date"`
		CreatedAt    time.Time       `json:"created_at"`
	}

	Budget struct {
		ID           int64           `json:"id"`
		UserID       int64           `json:"user_id"`
		CategoryID   int64           `json:"category_id"`
		CategoryName *string         `json:"category_name"`
		Amount       decimal.Decimal `json:"amount"`
		Period       BudgetPeriod    `json:"period"`
		CreatedAt    time.Time       `json:"created_at"`
	}
)

// Valid reports whether t is one of the two supported transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Valid reports whether p is one of the supported budget periods.
func (p BudgetPeriod) Valid() bool {
	switch p {
	case Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return Invalidf("user name cannot be empty")
	}
	email := strings.TrimSpace(u.Email)
	if email == "" {
		return Invalidf("user email cannot be empty")
	}
	if !strings.Contains(email, "@") {
		return Invalidf("invalid email address %q", email)
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Invalidf("category name cannot be empty")
	}
	return nil
}

// Validate checks the fields the store cannot enforce: the type enum and the
// sign convention. Amounts carry magnitude only; direction lives in Type.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return Invalidf("invalid transaction type %q: must be %q or %q", t.Type, Income, Expense)
	}
	if t.Amount.IsNegative() {
		return Invalidf("transaction amount cannot be negative")
	}
	return nil
}

func (b Budget) Validate() error {
	if !b.Period.Valid() {
		return Invalidf("invalid budget period %q: must be one of %q, %q, %q", b.Period, Weekly, Monthly, Yearly)
	}
	if b.Amount.IsNegative() {
		return Invalidf("budget amount cannot be negative")
	}
	return nil
}
