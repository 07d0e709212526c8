package statement

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kosh/internal/core"
	"kosh/internal/services"
	"kosh/internal/storage"
)

// stubExtractor returns canned page text and counts invocations.
type stubExtractor struct {
	pages []string
	calls int
}

func (s *stubExtractor) PageTexts(_ context.Context, _ string) ([]string, error) {
	s.calls++
	return s.pages, nil
}

func newImportEnv(t *testing.T, pages []string) (*Importer, *storage.SQLiteRepository, int64, *stubExtractor) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "import_test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	userID, err := repo.CreateUser(context.Background(), "tester", "tester@example.com", "hash", "salt", "Test User")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	ext := &stubExtractor{pages: pages}
	imp := NewImporter(repo, services.NewCategorizer(repo), ext, 0, 0)
	return imp, repo, userID, ext
}

const phonePePage = "Transaction Statement for 98XXXXXX21\n" +
	"Date Transaction Details Type Amount\n" +
	"Jan 5, 2024 Paid to Acme Restaurant DEBIT Rs.1,234.50\n" +
	"Transaction ID TXA1\n" +
	"UTR No. 400111\n" +
	"Jan 7, 2024 Received from Employer CREDIT Rs.50,000.00\n" +
	"Transaction ID TXB2\n"

func TestBuildPreview(t *testing.T) {
	imp, repo, userID, ext := newImportEnv(t, []string{phonePePage})
	ctx := context.Background()

	// Rule maps the restaurant to Dining and a managed account.
	if _, err := repo.CreateManagedAccount(ctx, core.ManagedAccount{
		UserID: userID, AccountName: "Shared", AccountType: "family",
	}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := repo.AddImportRule(ctx, core.ImportRule{
		UserID: userID, Keyword: "acme restaurant", Category: "Dining", AccountName: "Shared",
	}); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	preview, err := imp.BuildPreview(ctx, userID, "statement.pdf", ProviderAuto)
	if err != nil {
		t.Fatalf("build preview: %v", err)
	}
	if preview.Provider != ProviderPhonePe {
		t.Errorf("provider = %s, want PhonePe", preview.Provider)
	}
	if len(preview.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(preview.Rows))
	}

	debit := preview.Rows[0]
	if debit.Category != "Dining" || debit.RuleAccountName != "Shared" {
		t.Errorf("rule not applied: %+v", debit)
	}
	if !strings.Contains(debit.Description, "payment to Acme Restaurant") {
		t.Errorf("description = %q", debit.Description)
	}

	credit := preview.Rows[1]
	// No rule, no builtin keyword, no history: CREDIT defaults to Income.
	if credit.Category != "Income" {
		t.Errorf("credit category = %q, want Income", credit.Category)
	}

	// Second preview of the same path hits the page cache.
	if _, err := imp.BuildPreview(ctx, userID, "statement.pdf", ProviderAuto); err != nil {
		t.Fatalf("second preview: %v", err)
	}
	if ext.calls != 1 {
		t.Errorf("extractor ran %d times, want 1", ext.calls)
	}
}

func TestPageCacheTTLOption(t *testing.T) {
	_, repo, userID, _ := newImportEnv(t, nil)
	ctx := context.Background()

	// A nanosecond TTL expires between calls, so each preview re-extracts.
	ext := &stubExtractor{pages: []string{phonePePage}}
	imp := NewImporter(repo, services.NewCategorizer(repo), ext, 1, time.Nanosecond)
	for i := 0; i < 2; i++ {
		if _, err := imp.BuildPreview(ctx, userID, "statement.pdf", ProviderPhonePe); err != nil {
			t.Fatalf("preview %d: %v", i, err)
		}
	}
	if ext.calls != 2 {
		t.Errorf("extractor ran %d times, want 2 with an expired cache", ext.calls)
	}
}

func TestCommitWritesLedgerEntries(t *testing.T) {
	imp, repo, userID, _ := newImportEnv(t, []string{phonePePage})
	ctx := context.Background()

	preview, err := imp.BuildPreview(ctx, userID, "statement.pdf", ProviderPhonePe)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	res, err := imp.Commit(ctx, userID, preview, nil)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 0 {
		t.Fatalf("result = %+v", res)
	}
	if res.SessionID == "" {
		t.Error("empty session id")
	}

	expenses, err := repo.ListExpenses(ctx, userID, 1, 2024)
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("got %d expenses, want 1", len(expenses))
	}
	e := expenses[0]
	if e.Amount != 1234.50 || e.Date.String() != "2024-01-05" || e.PaymentMethod != "UPI" {
		t.Errorf("expense = %+v", e)
	}
	if !strings.Contains(e.Notes, "[STATEMENT:TXA1]") || !strings.Contains(e.Notes, "[UTR:400111]") {
		t.Errorf("notes = %q", e.Notes)
	}
	if !strings.Contains(e.Notes, "[SOURCE:PhonePe PDF]") {
		t.Errorf("notes = %q", e.Notes)
	}

	income, err := repo.ListIncome(ctx, userID, 1, 2024)
	if err != nil {
		t.Fatalf("list income: %v", err)
	}
	if len(income) != 1 {
		t.Fatalf("got %d income rows, want 1", len(income))
	}
	if income[0].Amount != 50000 || income[0].Description != "Imported from statement TXB2" {
		t.Errorf("income = %+v", income[0])
	}

	sessions, err := repo.ListImportSessions(ctx, userID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Imported != 2 || sessions[0].Provider != "PhonePe" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestCommitSkipsDuplicatesAcrossSessions(t *testing.T) {
	imp, repo, userID, _ := newImportEnv(t, []string{phonePePage})
	ctx := context.Background()

	preview, err := imp.BuildPreview(ctx, userID, "statement.pdf", ProviderPhonePe)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if _, err := imp.Commit(ctx, userID, preview, nil); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	// Re-importing the same statement in a fresh session: every row skips.
	res, err := imp.Commit(ctx, userID, preview, nil)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if res.Imported != 0 || res.Skipped != 2 {
		t.Errorf("re-import result = %+v, want all skipped", res)
	}

	expenses, err := repo.ListExpenses(ctx, userID, 1, 2024)
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Errorf("duplicate expense created: %d rows", len(expenses))
	}

	sessions, err := repo.ListImportSessions(ctx, userID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("got %d sessions, want 2", len(sessions))
	}
}

func TestCommitRuleAccountOverride(t *testing.T) {
	imp, repo, userID, _ := newImportEnv(t, []string{phonePePage})
	ctx := context.Background()

	accID, err := repo.CreateManagedAccount(ctx, core.ManagedAccount{
		UserID: userID, AccountName: "Shared",
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := repo.AddImportRule(ctx, core.ImportRule{
		UserID: userID, Keyword: "acme restaurant", Category: "Dining", AccountName: "Shared",
	}); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	preview, err := imp.BuildPreview(ctx, userID, "statement.pdf", ProviderPhonePe)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if _, err := imp.Commit(ctx, userID, preview, nil); err != nil {
		t.Fatalf("commit: %v", err)
	}

	expenses, err := repo.ListExpenses(ctx, userID, 1, 2024)
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("got %d expenses", len(expenses))
	}
	if expenses[0].AccountID == nil || *expenses[0].AccountID != accID {
		t.Errorf("rule account not applied: %+v", expenses[0].AccountID)
	}
}
