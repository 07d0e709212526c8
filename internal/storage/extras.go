package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kosh/internal/core"
)

// CreateManagedAccount adds a named sub-ledger for the user. Account names
// are unique per user.
func (r *SQLiteRepository) CreateManagedAccount(ctx context.Context, a core.ManagedAccount) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO managed_accounts (user_id, account_name, account_type, email, phone, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.UserID, a.AccountName, a.AccountType, a.Email, a.Phone, a.Notes)
	if err != nil {
		return 0, fmt.Errorf("insert managed account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("managed account id: %w", err)
	}
	return id, nil
}

// ListManagedAccounts returns the user's sub-ledgers ordered by name.
func (r *SQLiteRepository) ListManagedAccounts(ctx context.Context, userID int64) ([]core.ManagedAccount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, account_name, COALESCE(account_type, ''), COALESCE(email, ''), COALESCE(phone, ''), COALESCE(notes, '')
		FROM managed_accounts WHERE user_id = ? ORDER BY account_name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list managed accounts: %w", err)
	}
	defer rows.Close()

	var out []core.ManagedAccount
	for rows.Next() {
		var a core.ManagedAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountName, &a.AccountType, &a.Email, &a.Phone, &a.Notes); err != nil {
			return nil, fmt.Errorf("scan managed account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindManagedAccountByName resolves a sub-ledger id by its display name.
// Nil when the name is unknown, so import rules can fall back gracefully.
func (r *SQLiteRepository) FindManagedAccountByName(ctx context.Context, userID int64, name string) (*core.ManagedAccount, error) {
	var a core.ManagedAccount
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, account_name, COALESCE(account_type, ''), COALESCE(email, ''), COALESCE(phone, ''), COALESCE(notes, '')
		FROM managed_accounts WHERE user_id = ? AND account_name = ?
	`, userID, name).Scan(&a.ID, &a.UserID, &a.AccountName, &a.AccountType, &a.Email, &a.Phone, &a.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find managed account: %w", err)
	}
	return &a, nil
}

// DeleteManagedAccount removes a sub-ledger. Entries keep existing with a
// NULL account_id per the schema's ON DELETE SET NULL.
func (r *SQLiteRepository) DeleteManagedAccount(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM managed_accounts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete managed account: %w", err)
	}
	return requireRow(res)
}

// CreateGoal adds a savings goal.
func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (int64, error) {
	due := ""
	if !g.DueDate.IsZero() {
		due = g.DueDate.String()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO financial_goals (user_id, title, target_amount, current_amount, due_date)
		VALUES (?, ?, ?, ?, ?)
	`, g.UserID, g.Title, g.TargetAmount, g.CurrentAmount, due)
	if err != nil {
		return 0, fmt.Errorf("insert goal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("goal id: %w", err)
	}
	return id, nil
}

// UpdateGoalProgress sets the saved amount on a goal.
func (r *SQLiteRepository) UpdateGoalProgress(ctx context.Context, userID, id int64, currentAmount float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE financial_goals SET current_amount = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?
	`, currentAmount, id, userID)
	if err != nil {
		return fmt.Errorf("update goal progress: %w", err)
	}
	return requireRow(res)
}

// ListGoals returns the user's goals, soonest due first, undated last.
func (r *SQLiteRepository) ListGoals(ctx context.Context, userID int64) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, target_amount, current_amount, COALESCE(due_date, '')
		FROM financial_goals WHERE user_id = ?
		ORDER BY CASE WHEN due_date = '' THEN 1 ELSE 0 END, due_date, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var g core.Goal
		var due string
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &g.TargetAmount, &g.CurrentAmount, &due); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if due != "" {
			g.DueDate = parseStoredDate(due)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGoal removes a goal.
func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM financial_goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return requireRow(res)
}

// AddNotification records an alert for the user.
func (r *SQLiteRepository) AddNotification(ctx context.Context, userID int64, title, message, severity string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, title, message, severity) VALUES (?, ?, ?, ?)
	`, userID, title, message, severity)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("notification id: %w", err)
	}
	return id, nil
}

// ListNotifications returns alerts newest first.
func (r *SQLiteRepository) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]core.Notification, error) {
	q := `
		SELECT id, user_id, title, COALESCE(message, ''), COALESCE(severity, 'info'), is_read, created_at
		FROM notifications WHERE user_id = ?`
	if unreadOnly {
		q += ` AND is_read = 0`
	}
	q += ` ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var n core.Notification
		var read int
		var createdAt sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Severity, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = read != 0
		n.CreatedAt = parseTimestamp(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags one alert as seen.
func (r *SQLiteRepository) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireRow(res)
}

// DeleteNotification removes one alert.
func (r *SQLiteRepository) DeleteNotification(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return requireRow(res)
}
