package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kosh/internal/core"
)

// CreateRecurringBill inserts a bill template. next_due_date is seeded from
// the start date; from then on only AdvanceRecurringBill moves it.
func (r *SQLiteRepository) CreateRecurringBill(ctx context.Context, b core.RecurringBill) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_bills
		(user_id, title, category, amount, frequency, start_date, next_due_date, payment_method, description, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.UserID, b.Title, b.Category, b.Amount, string(b.Frequency),
		b.StartDate.String(), b.StartDate.String(), b.PaymentMethod, b.Description, boolToInt(b.Active))
	if err != nil {
		return 0, fmt.Errorf("insert recurring bill: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recurring bill id: %w", err)
	}
	return id, nil
}

// GetRecurringBill fetches one bill owned by the user.
func (r *SQLiteRepository) GetRecurringBill(ctx context.Context, userID, id int64) (*core.RecurringBill, error) {
	row := r.db.QueryRowContext(ctx, recurringSelect+` WHERE id = ? AND user_id = ?`, id, userID)
	b, err := scanRecurringBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListRecurringBills returns bills ordered by next due date.
func (r *SQLiteRepository) ListRecurringBills(ctx context.Context, userID int64, activeOnly bool) ([]core.RecurringBill, error) {
	q := recurringSelect + ` WHERE user_id = ?`
	if activeOnly {
		q += ` AND is_active = 1`
	}
	q += ` ORDER BY next_due_date`

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring bills: %w", err)
	}
	defer rows.Close()
	return collectRecurringBills(rows)
}

// DueRecurringBills returns active bills with next_due_date on or before
// runDate, ordered by next_due_date ascending. This is the batch the
// processor fires in one invocation.
func (r *SQLiteRepository) DueRecurringBills(ctx context.Context, userID int64, runDate core.Date) ([]core.RecurringBill, error) {
	rows, err := r.db.QueryContext(ctx, recurringSelect+`
		WHERE user_id = ? AND is_active = 1 AND next_due_date <= ?
		ORDER BY next_due_date
	`, userID, runDate.String())
	if err != nil {
		return nil, fmt.Errorf("query due bills: %w", err)
	}
	defer rows.Close()
	return collectRecurringBills(rows)
}

// AdvanceRecurringBill moves next_due_date from `from` to `to` and stamps
// last_run_at, as a single compare-and-set: the update only applies while
// next_due_date still equals the value the caller read. Returns false when
// the row was already advanced by a concurrent trigger, which is the guard
// against double-firing a bill on two rapid manual runs.
func (r *SQLiteRepository) AdvanceRecurringBill(ctx context.Context, userID, id int64, from, to core.Date, runAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_bills
		SET next_due_date = ?, last_run_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ? AND next_due_date = ?
	`, to.String(), runAt.UTC().Format("2006-01-02 15:04:05"), id, userID, from.String())
	if err != nil {
		return false, fmt.Errorf("advance recurring bill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateRecurringBill rewrites the user-editable fields of a bill. The due
// date is deliberately not touched here.
func (r *SQLiteRepository) UpdateRecurringBill(ctx context.Context, b core.RecurringBill) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_bills
		SET title = ?, category = ?, amount = ?, frequency = ?, payment_method = ?,
		    description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?
	`, b.Title, b.Category, b.Amount, string(b.Frequency), b.PaymentMethod, b.Description, b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update recurring bill: %w", err)
	}
	return requireRow(res)
}

// SetRecurringBillActive pauses or resumes a bill. No effect on due dates.
func (r *SQLiteRepository) SetRecurringBillActive(ctx context.Context, userID, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_bills SET is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?
	`, boolToInt(active), id, userID)
	if err != nil {
		return fmt.Errorf("toggle recurring bill: %w", err)
	}
	return requireRow(res)
}

// DeleteRecurringBill removes a bill template entirely. Pausing is the
// usual path; deletion is for templates created in error.
func (r *SQLiteRepository) DeleteRecurringBill(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_bills WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring bill: %w", err)
	}
	return requireRow(res)
}

const recurringSelect = `
	SELECT id, user_id, title, category, amount, frequency, start_date, next_due_date,
	       COALESCE(payment_method, ''), COALESCE(description, ''), is_active, last_run_at
	FROM recurring_bills`

func scanRecurringBill(row rowScanner) (*core.RecurringBill, error) {
	var b core.RecurringBill
	var freq, startDate, nextDue string
	var active int
	var lastRun sql.NullString
	err := row.Scan(&b.ID, &b.UserID, &b.Title, &b.Category, &b.Amount, &freq,
		&startDate, &nextDue, &b.PaymentMethod, &b.Description, &active, &lastRun)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan recurring bill: %w", err)
	}
	b.Frequency = core.Frequency(freq)
	b.StartDate = parseStoredDate(startDate)
	b.NextDueDate = parseStoredDate(nextDue)
	b.Active = active != 0
	b.LastRunAt = parseTimestamp(lastRun)
	return &b, nil
}

func collectRecurringBills(rows *sql.Rows) ([]core.RecurringBill, error) {
	var out []core.RecurringBill
	for rows.Next() {
		b, err := scanRecurringBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
