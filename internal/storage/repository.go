package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fintrack/internal/core"
)

// Repository is the SQLite entity store. All monetary amounts are persisted
// as decimal strings; all timestamps are stored in UTC.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies pending
// migrations. Pass ":memory:" for an ephemeral database.
func Open(path string) (*Repository, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows a single writer; one pooled connection also keeps
	// in-memory databases on the same underlying store.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// mapConstraint translates SQLite constraint failures into the integrity
// error kind; everything else passes through unchanged.
func mapConstraint(err error, msg string) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT,
			sqlite3.SQLITE_CONSTRAINT_UNIQUE,
			sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
			sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
			sqlite3.SQLITE_CONSTRAINT_CHECK,
			sqlite3.SQLITE_CONSTRAINT_TRIGGER:
			return core.Integrity(msg, err)
		}
	}
	return err
}

// --- Users ---

func (r *Repository) CreateUser(ctx context.Context, u *core.User) error {
	u.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, created_at) VALUES (?, ?, ?)`,
		u.Name, u.Email, u.CreatedAt)
	if err != nil {
		return mapConstraint(err, fmt.Sprintf("create user %q", u.Email))
	}
	u.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read user id: %w", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *Repository) UserEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

// DeleteUser removes the user; the schema cascades to their transactions
// and budgets.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

// --- Categories ---

func (r *Repository) CreateCategory(ctx context.Context, c *core.Category) error {
	c.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, created_at) VALUES (?, ?)`,
		c.Name, c.CreatedAt)
	if err != nil {
		return mapConstraint(err, fmt.Sprintf("create category %q", c.Name))
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read category id: %w", err)
	}
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (*core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NotFound("category", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return &c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *Repository) CategoryNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return exists, nil
}

// DeleteCategory fails with an integrity error while transactions or budgets
// still reference the category.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return mapConstraint(err, fmt.Sprintf("delete category %d still in use", id))
	}
	return requireAffected(res, "category", id)
}

// --- Transactions ---

// TransactionFilter narrows ListTransactions. Nil fields impose no
// constraint; From/To bound the transaction date inclusively.
type TransactionFilter struct {
	UserID     *int64
	CategoryID *int64
	Type       *core.TransactionType
	From       *time.Time
	To         *time.Time
}

const transactionColumns = `t.id, t.user_id, t.category_id, c.name, t.amount, t.description, t.type, t.date, t.created_at`

func scanTransaction(row interface{ Scan(...any) error }) (*core.Transaction, error) {
	var (
		t    core.Transaction
		name sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.CategoryID, &name, &t.Amount,
		&t.Description, &t.Type, &t.Date, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if name.Valid {
		t.CategoryName = &name.String
	}
	return &t, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	t.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, category_id, amount, description, type, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.CategoryID, t.Amount, t.Description, t.Type, t.Date.UTC(), t.CreatedAt)
	if err != nil {
		return mapConstraint(err, "create transaction")
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read transaction id: %w", err)
	}
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NotFound("transaction", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		 FROM transactions t LEFT JOIN categories c ON c.id = t.category_id`

	var (
		where []string
		args  []any
	)
	if f.UserID != nil {
		where = append(where, "t.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.CategoryID != nil {
		where = append(where, "t.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Type != nil {
		where = append(where, "t.type = ?")
		args = append(args, *f.Type)
	}
	if f.From != nil {
		where = append(where, "t.date >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "t.date <= ?")
		args = append(args, f.To.UTC())
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.date DESC, t.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// UpdateTransactionParams carries a partial update; nil fields are left
// untouched.
type UpdateTransactionParams struct {
	CategoryID  *int64
	Amount      *decimal.Decimal
	Description *string
	Type        *core.TransactionType
	Date        *time.Time
}

func (r *Repository) UpdateTransaction(ctx context.Context, id int64, p UpdateTransactionParams) (*core.Transaction, error) {
	var (
		set  []string
		args []any
	)
	if p.CategoryID != nil {
		set = append(set, "category_id = ?")
		args = append(args, *p.CategoryID)
	}
	if p.Amount != nil {
		set = append(set, "amount = ?")
		args = append(args, *p.Amount)
	}
	if p.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Type != nil {
		set = append(set, "type = ?")
		args = append(args, *p.Type)
	}
	if p.Date != nil {
		set = append(set, "date = ?")
		args = append(args, p.Date.UTC())
	}
	if len(set) == 0 {
		return r.GetTransaction(ctx, id)
	}

	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, mapConstraint(err, fmt.Sprintf("update transaction %d", id))
	}
	if err := requireAffected(res, "transaction", id); err != nil {
		return nil, err
	}
	return r.GetTransaction(ctx, id)
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return requireAffected(res, "transaction", id)
}

// --- Budgets ---

const budgetColumns = `b.id, b.user_id, b.category_id, c.name, b.amount, b.period, b.created_at`

func scanBudget(row interface{ Scan(...any) error }) (*core.Budget, error) {
	var (
		b    core.Budget
		name sql.NullString
	)
	err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &name, &b.Amount, &b.Period, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	if name.Valid {
		b.CategoryName = &name.String
	}
	return &b, nil
}

func (r *Repository) CreateBudget(ctx context.Context, b *core.Budget) error {
	b.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, amount, period, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, b.Amount, b.Period, b.CreatedAt)
	if err != nil {
		return mapConstraint(err, "create budget")
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read budget id: %w", err)
	}
	return nil
}

func (r *Repository) GetBudget(ctx context.Context, id int64) (*core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+`
		 FROM budgets b LEFT JOIN categories c ON c.id = b.category_id
		 WHERE b.id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NotFound("budget", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get budget %d: %w", id, err)
	}
	return b, nil
}

// ListBudgets returns the user's budgets, or every budget when userID is nil.
func (r *Repository) ListBudgets(ctx context.Context, userID *int64) ([]core.Budget, error) {
	query := `SELECT ` + budgetColumns + `
		 FROM budgets b LEFT JOIN categories c ON c.id = b.category_id`
	var args []any
	if userID != nil {
		query += " WHERE b.user_id = ?"
		args = append(args, *userID)
	}
	query += " ORDER BY b.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, *b)
	}
	return budgets, rows.Err()
}

// UpdateBudgetParams carries a partial update; nil fields are left untouched.
type UpdateBudgetParams struct {
	CategoryID *int64
	Amount     *decimal.Decimal
	Period     *core.BudgetPeriod
}

func (r *Repository) UpdateBudget(ctx context.Context, id int64, p UpdateBudgetParams) (*core.Budget, error) {
	var (
		set  []string
		args []any
	)
	if p.CategoryID != nil {
		set = append(set, "category_id = ?")
		args = append(args, *p.CategoryID)
	}
	if p.Amount != nil {
		set = append(set, "amount = ?")
		args = append(args, *p.Amount)
	}
	if p.Period != nil {
		set = append(set, "period = ?")
		args = append(args, *p.Period)
	}
	if len(set) == 0 {
		return r.GetBudget(ctx, id)
	}

	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, mapConstraint(err, fmt.Sprintf("update budget %d", id))
	}
	if err := requireAffected(res, "budget", id); err != nil {
		return nil, err
	}
	return r.GetBudget(ctx, id)
}

func (r *Repository) DeleteBudget(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	return requireAffected(res, "budget", id)
}

// ListBudgetOwners returns the distinct user ids that own at least one
// budget. Used by the alert sweep.
func (r *Repository) ListBudgetOwners(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM budgets ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list budget owners: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan budget owner: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func requireAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}
