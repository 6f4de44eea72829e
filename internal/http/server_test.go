package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := services.NewFinanceService(repo, nil, nil)
	engine := analytics.NewEngine(repo)
	srv := NewServer(":0", svc, engine, nil)
	t.Cleanup(func() { srv.rateLimiter.stop() })

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, out.Bytes()
}

func decodeInto(t *testing.T, data []byte, dst any) {
	t.Helper()
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("decode response %s: %v", data, err)
	}
}

func createUser(t *testing.T, ts *httptest.Server, name, email string) core.User {
	t.Helper()
	resp, body := doJSON(t, ts, http.MethodPost, "/api/users", map[string]string{"name": name, "email": email})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user status = %d: %s", resp.StatusCode, body)
	}
	var u core.User
	decodeInto(t, body, &u)
	return u
}

func createCategory(t *testing.T, ts *httptest.Server, name string) core.Category {
	t.Helper()
	resp, body := doJSON(t, ts, http.MethodPost, "/api/categories", map[string]string{"name": name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create category status = %d: %s", resp.StatusCode, body)
	}
	var c core.Category
	decodeInto(t, body, &c)
	return c
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodGet, "/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var payload struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
		Version   string `json:"version"`
	}
	decodeInto(t, body, &payload)
	if payload.Status != "healthy" {
		t.Errorf("status = %q, want healthy", payload.Status)
	}
	if payload.Timestamp == "" || payload.Version == "" {
		t.Errorf("payload incomplete: %s", body)
	}
}

func TestServer_Users(t *testing.T) {
	ts := newTestServer(t)

	u := createUser(t, ts, "Alice", "alice@example.com")
	if u.ID == 0 {
		t.Fatal("user id not set")
	}

	t.Run("duplicate email is 400", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPost, "/api/users", map[string]string{"name": "X", "email": "alice@example.com"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/users", bytes.NewBufferString("{not json"))
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("get", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/users/%d", u.ID), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var got core.User
		decodeInto(t, body, &got)
		if got.Email != "alice@example.com" {
			t.Errorf("email = %q", got.Email)
		}
	})

	t.Run("get missing is 404", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodGet, "/api/users/9999", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("list", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodGet, "/api/users", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var users []core.User
		decodeInto(t, body, &users)
		if len(users) != 1 {
			t.Errorf("users = %d, want 1", len(users))
		}
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/users/%d", u.ID), nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("status = %d, want 204", resp.StatusCode)
		}
		resp, _ = doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/users/%d", u.ID), nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("second delete status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestServer_Categories(t *testing.T) {
	ts := newTestServer(t)

	c := createCategory(t, ts, "Pets")

	t.Run("list includes seeded taxonomy", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodGet, "/api/categories", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var categories []core.Category
		decodeInto(t, body, &categories)
		if len(categories) != 13 {
			t.Errorf("categories = %d, want 12 seeded + 1 created", len(categories))
		}
	})

	t.Run("referenced category delete is 409", func(t *testing.T) {
		u := createUser(t, ts, "Alice", "alice@example.com")
		resp, body := doJSON(t, ts, http.MethodPost, "/api/transactions", map[string]any{
			"user_id":     u.ID,
			"category_id": c.ID,
			"amount":      "12.50",
			"type":        "expense",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create transaction status = %d: %s", resp.StatusCode, body)
		}

		resp, _ = doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/categories/%d", c.ID), nil)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})
}

func TestServer_Transactions(t *testing.T) {
	ts := newTestServer(t)

	u := createUser(t, ts, "Alice", "alice@example.com")
	food := createCategory(t, ts, "Food")
	rent := createCategory(t, ts, "Rent")

	create := func(categoryID int64, amount, typ, date string) core.Transaction {
		t.Helper()
		resp, body := doJSON(t, ts, http.MethodPost, "/api/transactions", map[string]any{
			"user_id":     u.ID,
			"category_id": categoryID,
			"amount":      amount,
			"type":        typ,
			"date":        date,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create transaction status = %d: %s", resp.StatusCode, body)
		}
		var tx core.Transaction
		decodeInto(t, body, &tx)
		return tx
	}

	tx1 := create(food.ID, "25.50", "expense", "2024-03-01")
	create(rent.ID, "800", "expense", "2024-03-05")
	create(food.ID, "2000", "income", "2024-03-10")

	if tx1.CategoryName == nil || *tx1.CategoryName != "Food" {
		t.Errorf("CategoryName = %v, want Food", tx1.CategoryName)
	}

	t.Run("invalid type is 400", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPost, "/api/transactions", map[string]any{
			"user_id":     u.ID,
			"category_id": food.ID,
			"amount":      "1",
			"type":        "transfer",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("unknown user is 404", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPost, "/api/transactions", map[string]any{
			"user_id":     9999,
			"category_id": food.ID,
			"amount":      "1",
			"type":        "expense",
		})
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("list with filters", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodGet,
			fmt.Sprintf("/api/transactions?user_id=%d&type=expense", u.ID), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var list []core.Transaction
		decodeInto(t, body, &list)
		if len(list) != 2 {
			t.Errorf("expenses = %d, want 2", len(list))
		}
	})

	t.Run("date-only end_date includes the whole day", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodGet,
			fmt.Sprintf("/api/transactions?user_id=%d&start_date=2024-03-01&end_date=2024-03-05", u.ID), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var list []core.Transaction
		decodeInto(t, body, &list)
		if len(list) != 2 {
			t.Errorf("transactions = %d, want 2", len(list))
		}
	})

	t.Run("update", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/transactions/%d", tx1.ID),
			map[string]any{"amount": "30"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %s", resp.StatusCode, body)
		}
		var got core.Transaction
		decodeInto(t, body, &got)
		if !got.Amount.Equal(decimal.NewFromInt(30)) {
			t.Errorf("amount = %s, want 30", got.Amount)
		}
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", tx1.ID), nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("status = %d, want 204", resp.StatusCode)
		}
	})
}

func TestServer_Budgets(t *testing.T) {
	ts := newTestServer(t)

	alice := createUser(t, ts, "Alice", "alice@example.com")
	bob := createUser(t, ts, "Bob", "bob@example.com")
	food := createCategory(t, ts, "Food")
	rent := createCategory(t, ts, "Rent")

	resp, body := doJSON(t, ts, http.MethodPost, "/api/budgets", map[string]any{
		"user_id":     alice.ID,
		"category_id": food.ID,
		"amount":      "300",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create budget status = %d: %s", resp.StatusCode, body)
	}
	var b core.Budget
	decodeInto(t, body, &b)
	if b.Period != core.Monthly {
		t.Errorf("period = %q, want monthly default", b.Period)
	}

	resp, body = doJSON(t, ts, http.MethodPost, "/api/budgets", map[string]any{
		"user_id":     bob.ID,
		"category_id": rent.ID,
		"amount":      "900",
		"period":      "yearly",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create budget status = %d: %s", resp.StatusCode, body)
	}

	t.Run("scoped list", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/budgets?user_id=%d", alice.ID), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var budgets []core.Budget
		decodeInto(t, body, &budgets)
		if len(budgets) != 1 || budgets[0].UserID != alice.ID {
			t.Errorf("scoped budgets = %+v", budgets)
		}
	})

	t.Run("unscoped list returns all", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodGet, "/api/budgets", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var budgets []core.Budget
		decodeInto(t, body, &budgets)
		if len(budgets) != 2 {
			t.Errorf("budgets = %d, want 2", len(budgets))
		}
	})

	t.Run("invalid period is 400", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/budgets/%d", b.ID),
			map[string]any{"period": "daily"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/budgets/%d", b.ID),
			map[string]any{"amount": "450"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %s", resp.StatusCode, body)
		}
		var got core.Budget
		decodeInto(t, body, &got)
		if !got.Amount.Equal(decimal.NewFromInt(450)) {
			t.Errorf("amount = %s, want 450", got.Amount)
		}

		resp, _ = doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/budgets/%d", b.ID), nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("delete status = %d, want 204", resp.StatusCode)
		}
	})
}

func TestServer_Analytics(t *testing.T) {
	ts := newTestServer(t)

	u := createUser(t, ts, "Alice", "alice@example.com")
	food := createCategory(t, ts, "Food")
	rent := createCategory(t, ts, "Rent")

	spend := func(categoryID int64, amount, typ string) {
		t.Helper()
		resp, body := doJSON(t, ts, http.MethodPost, "/api/transactions", map[string]any{
			"user_id":     u.ID,
			"category_id": categoryID,
			"amount":      amount,
			"type":        typ,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create transaction status = %d: %s", resp.StatusCode, body)
		}
	}

	spend(food.ID, "150", "expense")
	spend(rent.ID, "850", "expense")
	spend(food.ID, "2000", "income")

	t.Run("summary", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/analytics/summary/%d", u.ID), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %s", resp.StatusCode, body)
		}
		var s analytics.Summary
		decodeInto(t, body, &s)
		if !s.TotalIncome.Equal(decimal.NewFromInt(2000)) {
			t.Errorf("income = %s, want 2000", s.TotalIncome)
		}
		if !s.TotalExpense.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("expense = %s, want 1000", s.TotalExpense)
		}
		if !s.NetBalance.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("net = %s, want 1000", s.NetBalance)
		}
	})

	t.Run("invalid period is 400", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodGet,
			fmt.Sprintf("/api/analytics/summary/%d?period=daily", u.ID), nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("spending by category", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodGet,
			fmt.Sprintf("/api/analytics/spending-by-category/%d", u.ID), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %s", resp.StatusCode, body)
		}
		var spending []analytics.CategorySpend
		decodeInto(t, body, &spending)
		if len(spending) != 2 {
			t.Fatalf("groups = %d, want 2", len(spending))
		}
		if spending[0].CategoryName != "Rent" || !spending[0].Percentage.Equal(decimal.NewFromInt(85)) {
			t.Errorf("top group = %s %s%%", spending[0].CategoryName, spending[0].Percentage)
		}
	})

	t.Run("monthly trend", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodGet,
			fmt.Sprintf("/api/analytics/monthly-trend/%d?months=3", u.ID), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %s", resp.StatusCode, body)
		}
		var points []analytics.MonthPoint
		decodeInto(t, body, &points)
		if len(points) != 3 {
			t.Fatalf("points = %d, want 3", len(points))
		}
		latest := points[2]
		if !latest.TotalExpense.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("current month expense = %s, want 1000", latest.TotalExpense)
		}
	})

	t.Run("budget status", func(t *testing.T) {
		resp, body := doJSON(t, ts, http.MethodPost, "/api/budgets", map[string]any{
			"user_id":     u.ID,
			"category_id": food.ID,
			"amount":      "200",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create budget status = %d: %s", resp.StatusCode, body)
		}

		resp, body = doJSON(t, ts, http.MethodGet,
			fmt.Sprintf("/api/analytics/budget-status/%d", u.ID), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %s", resp.StatusCode, body)
		}
		var entries []analytics.BudgetStatusEntry
		decodeInto(t, body, &entries)
		if len(entries) != 1 {
			t.Fatalf("entries = %d, want 1", len(entries))
		}
		// 150 spent of 200 is 75%, below the default warning threshold.
		if entries[0].Status != analytics.StatusOK {
			t.Errorf("status = %q, want ok", entries[0].Status)
		}
		if !entries[0].PercentageUsed.Equal(decimal.NewFromInt(75)) {
			t.Errorf("used = %s%%, want 75", entries[0].PercentageUsed)
		}
	})

	t.Run("invalid months is 400", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodGet,
			fmt.Sprintf("/api/analytics/monthly-trend/%d?months=0", u.ID), nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}
