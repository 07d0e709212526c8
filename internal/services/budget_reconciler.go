// Package services provides business logic on top of the storage layer:
// budget reconciliation, recurring bill processing, category resolution and
// system alert generation.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"kosh/internal/core"
	"kosh/internal/storage"
)

// BudgetReconciler derives spent-vs-limit reports from the ledger. Reports
// are computed fresh on every call; there is no cached spent column to drift
// out of sync.
type BudgetReconciler struct {
	storage *storage.SQLiteRepository
}

func NewBudgetReconciler(storage *storage.SQLiteRepository) *BudgetReconciler {
	return &BudgetReconciler{storage: storage}
}

// Reconcile builds the report for one (category, month, year). Returns
// core.ErrNotFound when no budget row exists for that tuple.
func (r *BudgetReconciler) Reconcile(ctx context.Context, userID int64, category string, month, year int) (*core.BudgetReport, error) {
	budget, err := r.storage.GetBudget(ctx, userID, category, month, year)
	if err != nil {
		return nil, err
	}
	spent, err := r.storage.SumExpenses(ctx, userID, category, month, year)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", category, err)
	}
	report := core.NewBudgetReport(category, budget.LimitAmount, spent)
	return &report, nil
}

// ReconcileAll builds reports for every budget defined in the month, in
// category order.
func (r *BudgetReconciler) ReconcileAll(ctx context.Context, userID int64, month, year int) ([]core.BudgetReport, error) {
	budgets, err := r.storage.ListBudgets(ctx, userID, month, year)
	if err != nil {
		return nil, err
	}

	reports := make([]core.BudgetReport, 0, len(budgets))
	for _, b := range budgets {
		spent, err := r.storage.SumExpenses(ctx, userID, b.Category, month, year)
		if err != nil {
			return nil, fmt.Errorf("reconcile %s: %w", b.Category, err)
		}
		reports = append(reports, core.NewBudgetReport(b.Category, b.LimitAmount, spent))
	}

	slog.InfoContext(ctx, "Reconciled budgets",
		"user_id", userID,
		"month", month,
		"year", year,
		"budgets", len(reports))
	return reports, nil
}
