package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kosh/internal/core"
)

// UpsertBudget creates or updates the limit for (user, category, month,
// year) and returns the budget id. The composite uniqueness lives in the
// schema; this is the only write path for budget rows.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM budgets WHERE user_id = ? AND category = ? AND month = ? AND year = ?
	`, b.UserID, b.Category, b.Month, b.Year).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO budgets (user_id, category, limit_amount, month, year)
			VALUES (?, ?, ?, ?, ?)
		`, b.UserID, b.Category, b.LimitAmount, b.Month, b.Year)
		if err != nil {
			return 0, fmt.Errorf("insert budget: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("budget id: %w", err)
		}
		return id, nil
	case err != nil:
		return 0, fmt.Errorf("find budget: %w", err)
	default:
		if _, err := r.db.ExecContext(ctx, `
			UPDATE budgets SET limit_amount = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, b.LimitAmount, id); err != nil {
			return 0, fmt.Errorf("update budget: %w", err)
		}
		return id, nil
	}
}

// GetBudget fetches one budget row; core.ErrNotFound when absent.
func (r *SQLiteRepository) GetBudget(ctx context.Context, userID int64, category string, month, year int) (*core.Budget, error) {
	var b core.Budget
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, category, limit_amount, month, year
		FROM budgets WHERE user_id = ? AND category = ? AND month = ? AND year = ?
	`, userID, category, month, year).Scan(&b.ID, &b.UserID, &b.Category, &b.LimitAmount, &b.Month, &b.Year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan budget: %w", err)
	}
	return &b, nil
}

// ListBudgets returns all budget rows for a month, ordered by category.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64, month, year int) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category, limit_amount, month, year
		FROM budgets WHERE user_id = ? AND month = ? AND year = ?
		ORDER BY category
	`, userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.Category, &b.LimitAmount, &b.Month, &b.Year); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBudget removes a budget row by id.
func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return requireRow(res)
}

// SumExpenses totals expenses for an exact category within one calendar
// month. Category matching is case-sensitive.
func (r *SQLiteRepository) SumExpenses(ctx context.Context, userID int64, category string, month, year int) (float64, error) {
	var spent float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE user_id = ? AND category = ?
		  AND strftime('%m', date) = ? AND strftime('%Y', date) = ?
	`, userID, category, fmt.Sprintf("%02d", month), fmt.Sprintf("%d", year)).Scan(&spent)
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return spent, nil
}
