package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"kosh/internal/core"
	"kosh/internal/storage"
)

func newTestEnv(t *testing.T) (*storage.SQLiteRepository, int64) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "services_test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	userID, err := repo.CreateUser(context.Background(), "tester", "tester@example.com", "hash", "salt", "Test User")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return repo, userID
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func TestRunDueBillsFiresOncePerCall(t *testing.T) {
	repo, userID := newTestEnv(t)
	ctx := context.Background()

	// Monthly bill that is three periods overdue by the run date.
	billID, err := repo.CreateRecurringBill(ctx, core.RecurringBill{
		UserID: userID, Title: "Rent", Category: "Housing", Amount: 15000,
		Frequency: core.Monthly, StartDate: mustDate(t, "2024-01-01"),
		PaymentMethod: "Bank Transfer", Active: true,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	p := NewRecurringProcessor(repo)
	runDate := mustDate(t, "2024-04-01")

	fired, err := p.RunDueBills(ctx, userID, runDate)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if fired != 1 {
		t.Fatalf("first run fired %d, want 1: overdue bills advance one step per run", fired)
	}

	bill, err := repo.GetRecurringBill(ctx, userID, billID)
	if err != nil {
		t.Fatalf("reload bill: %v", err)
	}
	if bill.NextDueDate.String() != "2024-01-31" {
		t.Errorf("next due = %s, want 2024-01-31 (one 30-day step)", bill.NextDueDate)
	}
	if bill.LastRunAt.IsZero() {
		t.Error("last run not stamped")
	}

	// Still overdue, so the second run fires again and advances another step.
	fired, err = p.RunDueBills(ctx, userID, runDate)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if fired != 1 {
		t.Fatalf("second run fired %d, want 1", fired)
	}

	bill, err = repo.GetRecurringBill(ctx, userID, billID)
	if err != nil {
		t.Fatalf("reload bill: %v", err)
	}
	if bill.NextDueDate.String() != "2024-03-01" {
		t.Errorf("next due = %s, want 2024-03-01", bill.NextDueDate)
	}

	expenses, err := repo.ListExpenses(ctx, userID, 1, 2024)
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 2 {
		t.Fatalf("got %d materialized expenses in January, want 2", len(expenses))
	}
	for _, e := range expenses {
		if e.Notes != core.AutoRecurringNote("Rent") {
			t.Errorf("notes = %q, want auto recurring marker", e.Notes)
		}
		if e.Description != "Rent" {
			t.Errorf("description = %q, want bill title fallback", e.Description)
		}
		if e.PaymentMethod != "Bank Transfer" {
			t.Errorf("payment method = %q", e.PaymentMethod)
		}
	}
}

func TestRunDueBillsSkipsInactiveAndFuture(t *testing.T) {
	repo, userID := newTestEnv(t)
	ctx := context.Background()

	bills := []struct {
		title  string
		start  string
		active bool
	}{
		{"Rent", "2024-01-01", true},
		{"Gym", "2024-06-01", true},
		{"Netflix", "2024-01-01", false},
	}
	for _, b := range bills {
		if _, err := repo.CreateRecurringBill(ctx, core.RecurringBill{
			UserID: userID, Title: b.title, Category: "Misc", Amount: 100,
			Frequency: core.Monthly, StartDate: mustDate(t, b.start), Active: b.active,
		}); err != nil {
			t.Fatalf("seed bill: %v", err)
		}
	}

	fired, err := NewRecurringProcessor(repo).RunDueBills(ctx, userID, mustDate(t, "2024-02-01"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if fired != 1 {
		t.Errorf("fired %d, want 1 (only the due active bill)", fired)
	}
}

func TestRunDueBillsExpenseDateIsDueDate(t *testing.T) {
	repo, userID := newTestEnv(t)
	ctx := context.Background()

	if _, err := repo.CreateRecurringBill(ctx, core.RecurringBill{
		UserID: userID, Title: "Internet", Category: "Utilities", Amount: 599,
		Frequency: core.Weekly, StartDate: mustDate(t, "2024-03-04"),
		Description: "Fiber plan", Active: true,
	}); err != nil {
		t.Fatalf("create bill: %v", err)
	}

	if _, err := NewRecurringProcessor(repo).RunDueBills(ctx, userID, mustDate(t, "2024-03-10")); err != nil {
		t.Fatalf("run: %v", err)
	}

	expenses, err := repo.ListExpenses(ctx, userID, 3, 2024)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("got %d expenses, want 1", len(expenses))
	}
	// Backdated to the due date, not the run date.
	if expenses[0].Date.String() != "2024-03-04" {
		t.Errorf("expense date = %s, want 2024-03-04", expenses[0].Date)
	}
	if expenses[0].Description != "Fiber plan" {
		t.Errorf("description = %q, want bill description", expenses[0].Description)
	}
}

func TestReconcile(t *testing.T) {
	repo, userID := newTestEnv(t)
	ctx := context.Background()

	if _, err := repo.UpsertBudget(ctx, core.Budget{
		UserID: userID, Category: "Food", LimitAmount: 10000, Month: 3, Year: 2024,
	}); err != nil {
		t.Fatalf("upsert budget: %v", err)
	}
	for _, amt := range []float64{4000, 5500} {
		if _, err := repo.CreateExpense(ctx, core.Expense{
			UserID: userID, Category: "Food", Amount: amt, Date: mustDate(t, "2024-03-12"),
		}); err != nil {
			t.Fatalf("seed expense: %v", err)
		}
	}

	rec := NewBudgetReconciler(repo)
	rep, err := rec.Reconcile(ctx, userID, "Food", 3, 2024)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rep.Spent != 9500 || rep.Remaining != 500 || rep.UsagePercent != 95 {
		t.Errorf("report = %+v", rep)
	}
	if rep.Status() != core.BudgetWarning {
		t.Errorf("status = %s, want Warning at 95%%", rep.Status())
	}

	if _, err := rec.Reconcile(ctx, userID, "Travel", 3, 2024); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing budget: got %v, want ErrNotFound", err)
	}
}

func TestReconcileAll(t *testing.T) {
	repo, userID := newTestEnv(t)
	ctx := context.Background()

	budgets := map[string]float64{"Food": 1000, "Transport": 2000}
	for cat, limit := range budgets {
		if _, err := repo.UpsertBudget(ctx, core.Budget{
			UserID: userID, Category: cat, LimitAmount: limit, Month: 5, Year: 2024,
		}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if _, err := repo.CreateExpense(ctx, core.Expense{
		UserID: userID, Category: "Food", Amount: 1200, Date: mustDate(t, "2024-05-20"),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reports, err := NewBudgetReconciler(repo).ReconcileAll(ctx, userID, 5, 2024)
	if err != nil {
		t.Fatalf("reconcile all: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	// Category order from the budget listing.
	if reports[0].Category != "Food" || reports[1].Category != "Transport" {
		t.Fatalf("order: %s, %s", reports[0].Category, reports[1].Category)
	}
	if reports[0].Status() != core.BudgetExceeded || reports[0].Remaining != -200 {
		t.Errorf("Food report = %+v", reports[0])
	}
	if reports[1].Status() != core.BudgetHealthy || reports[1].Spent != 0 {
		t.Errorf("Transport report = %+v", reports[1])
	}
}

func TestCategorizerPrecedence(t *testing.T) {
	repo, userID := newTestEnv(t)
	ctx := context.Background()

	// History: "megamart" purchases were categorized Groceries.
	if _, err := repo.CreateExpense(ctx, core.Expense{
		UserID: userID, Category: "Groceries", Amount: 10,
		Date: mustDate(t, "2024-01-05"), Description: "MegaMart weekly run",
	}); err != nil {
		t.Fatalf("seed history: %v", err)
	}
	// User rule: "swiggy" maps to Dining, overriding the builtin Food group.
	if _, err := repo.AddImportRule(ctx, core.ImportRule{
		UserID: userID, Keyword: "swiggy", Category: "Dining",
	}); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	c := NewCategorizer(repo)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"user rule beats builtin", "Paid to Swiggy Instamart", "Dining"},
		{"builtin keyword", "UBER trip 4482", "Transport"},
		{"builtin order food before utilities", "restaurant bill", "Food"},
		{"history fallback", "megamart purchase", "Groceries"},
		{"nothing matches", "xyzzy plugh", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Resolve(ctx, userID, tt.text)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestBuiltinCategoryTable(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"electricity recharge", "Utilities"},
		{"NETFLIX subscription", "Entertainment"},
		{"pharmacy pickup", "Healthcare"},
		{"college exam fee", "Education"},
		{"petrol pump", "Transport"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := builtinCategory(tt.text); got != tt.want {
			t.Errorf("builtinCategory(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestGenerateSystemAlerts(t *testing.T) {
	repo, userID := newTestEnv(t)
	ctx := context.Background()
	today := mustDate(t, "2024-03-15")

	// Exceeded budget: spent 1200 of 1000.
	if _, err := repo.UpsertBudget(ctx, core.Budget{
		UserID: userID, Category: "Food", LimitAmount: 1000, Month: 3, Year: 2024,
	}); err != nil {
		t.Fatalf("upsert budget: %v", err)
	}
	if _, err := repo.CreateExpense(ctx, core.Expense{
		UserID: userID, Category: "Food", Amount: 1200, Date: mustDate(t, "2024-03-10"),
	}); err != nil {
		t.Fatalf("seed expense: %v", err)
	}
	// A due bill.
	if _, err := repo.CreateRecurringBill(ctx, core.RecurringBill{
		UserID: userID, Title: "Rent", Category: "Housing", Amount: 500,
		Frequency: core.Monthly, StartDate: mustDate(t, "2024-03-01"), Active: true,
	}); err != nil {
		t.Fatalf("seed bill: %v", err)
	}
	// No income at all, so the balance is negative.

	reconciler := NewBudgetReconciler(repo)
	created, err := NewNotifier(repo, reconciler).GenerateSystemAlerts(ctx, userID, today)
	if err != nil {
		t.Fatalf("generate alerts: %v", err)
	}
	if created != 3 {
		t.Fatalf("created %d alerts, want 3 (budget, bills due, balance)", created)
	}

	alerts, err := repo.ListNotifications(ctx, userID, true)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	titles := make(map[string]string, len(alerts))
	for _, a := range alerts {
		titles[a.Title] = a.Severity
	}
	if titles["Budget Exceeded"] != "danger" {
		t.Errorf("budget alert: %+v", titles)
	}
	if titles["Bills Due"] != "warning" {
		t.Errorf("bills due alert: %+v", titles)
	}
	if titles["Negative Balance"] != "danger" {
		t.Errorf("balance alert: %+v", titles)
	}
	for _, a := range alerts {
		if a.Title == "Budget Exceeded" && !strings.Contains(a.Message, "Food") {
			t.Errorf("exceeded message missing category: %q", a.Message)
		}
	}
}

func TestGenerateSystemAlertsQuietWhenHealthy(t *testing.T) {
	repo, userID := newTestEnv(t)
	ctx := context.Background()

	if _, err := repo.CreateIncome(ctx, core.Income{
		UserID: userID, Source: "Salary", Amount: 50000, Date: mustDate(t, "2024-03-01"),
	}); err != nil {
		t.Fatalf("seed income: %v", err)
	}
	if _, err := repo.UpsertBudget(ctx, core.Budget{
		UserID: userID, Category: "Food", LimitAmount: 1000, Month: 3, Year: 2024,
	}); err != nil {
		t.Fatalf("upsert budget: %v", err)
	}
	if _, err := repo.CreateExpense(ctx, core.Expense{
		UserID: userID, Category: "Food", Amount: 100, Date: mustDate(t, "2024-03-05"),
	}); err != nil {
		t.Fatalf("seed expense: %v", err)
	}

	created, err := NewNotifier(repo, NewBudgetReconciler(repo)).GenerateSystemAlerts(ctx, userID, mustDate(t, "2024-03-15"))
	if err != nil {
		t.Fatalf("generate alerts: %v", err)
	}
	if created != 0 {
		t.Errorf("created %d alerts, want 0", created)
	}
}
