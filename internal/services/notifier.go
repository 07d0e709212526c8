package services

import (
	"context"
	"fmt"
	"log/slog"

	"kosh/internal/core"
	"kosh/internal/storage"
)

// Notifier turns ledger state into stored alerts: budget health, bills
// coming due, and negative balance.
type Notifier struct {
	storage    *storage.SQLiteRepository
	reconciler *BudgetReconciler
}

func NewNotifier(storage *storage.SQLiteRepository, reconciler *BudgetReconciler) *Notifier {
	return &Notifier{storage: storage, reconciler: reconciler}
}

// GenerateSystemAlerts inspects the user's current position as of today and
// records one notification per condition found. Returns the number created.
// Callers typically run this once per session open; duplicates across runs
// are acceptable, unread state is what the UI surfaces.
func (n *Notifier) GenerateSystemAlerts(ctx context.Context, userID int64, today core.Date) (int, error) {
	created := 0
	month := int(today.Month())
	year := today.Year()

	reports, err := n.reconciler.ReconcileAll(ctx, userID, month, year)
	if err != nil {
		return 0, fmt.Errorf("budget alerts: %w", err)
	}
	for _, rep := range reports {
		switch rep.Status() {
		case core.BudgetExceeded:
			msg := fmt.Sprintf("%s spending is %.0f%% of its limit (spent %.2f of %.2f)",
				rep.Category, rep.UsagePercent, rep.Spent, rep.LimitAmount)
			if _, err := n.storage.AddNotification(ctx, userID, "Budget Exceeded", msg, "danger"); err != nil {
				return created, fmt.Errorf("add exceeded alert: %w", err)
			}
			created++
		case core.BudgetWarning:
			msg := fmt.Sprintf("%s spending reached %.0f%% of its limit",
				rep.Category, rep.UsagePercent)
			if _, err := n.storage.AddNotification(ctx, userID, "Budget Warning", msg, "warning"); err != nil {
				return created, fmt.Errorf("add warning alert: %w", err)
			}
			created++
		}
	}

	due, err := n.storage.DueRecurringBills(ctx, userID, today)
	if err != nil {
		return created, fmt.Errorf("due bill alerts: %w", err)
	}
	if len(due) > 0 {
		msg := fmt.Sprintf("%d recurring bill(s) due as of %s", len(due), today.String())
		if _, err := n.storage.AddNotification(ctx, userID, "Bills Due", msg, "warning"); err != nil {
			return created, fmt.Errorf("add due bill alert: %w", err)
		}
		created++
	}

	summary, err := n.storage.Summary(ctx, userID)
	if err != nil {
		return created, fmt.Errorf("balance alert: %w", err)
	}
	if summary.Balance < 0 {
		msg := fmt.Sprintf("Expenses exceed income by %.2f", -summary.Balance)
		if _, err := n.storage.AddNotification(ctx, userID, "Negative Balance", msg, "danger"); err != nil {
			return created, fmt.Errorf("add balance alert: %w", err)
		}
		created++
	}

	slog.InfoContext(ctx, "Generated system alerts",
		"user_id", userID,
		"created", created)
	return created, nil
}
