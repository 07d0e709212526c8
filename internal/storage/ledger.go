package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"kosh/internal/core"
)

// CreateExpense inserts one expense row and returns its id.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (user_id, account_id, category, amount, date, description, payment_method, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.UserID, nullableID(e.AccountID), e.Category, e.Amount, e.Date.String(), e.Description, e.PaymentMethod, e.Notes)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"user_id", e.UserID,
		"category", e.Category,
		"amount", e.Amount,
		"date", e.Date.String())
	return id, nil
}

// UpdateExpense rewrites all mutable fields of an expense owned by the user.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET account_id = ?, category = ?, amount = ?, date = ?, description = ?,
		    payment_method = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?
	`, nullableID(e.AccountID), e.Category, e.Amount, e.Date.String(), e.Description, e.PaymentMethod, e.Notes, e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return requireRow(res)
}

// GetExpense fetches one expense owned by the user.
func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx, expenseSelect+` WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListExpenses returns the user's expenses newest first. A non-zero
// month/year restricts to that calendar month.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64, month, year int) ([]core.Expense, error) {
	q := expenseSelect + ` WHERE user_id = ?`
	args := []any{userID}
	if month > 0 && year > 0 {
		q += ` AND strftime('%m', date) = ? AND strftime('%Y', date) = ?`
		args = append(args, fmt.Sprintf("%02d", month), fmt.Sprintf("%d", year))
	}
	q += ` ORDER BY date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// DeleteExpense snapshots the row into the trash bin, then removes it.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id int64) error {
	e, err := r.GetExpense(ctx, userID, id)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := trashSnapshot(ctx, tx, userID, "expense", e); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return tx.Commit()
}

// CreateIncome inserts one income row and returns its id.
func (r *SQLiteRepository) CreateIncome(ctx context.Context, in core.Income) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO income (user_id, account_id, source, amount, date, description, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, in.UserID, nullableID(in.AccountID), in.Source, in.Amount, in.Date.String(), in.Description, in.Notes)
	if err != nil {
		return 0, fmt.Errorf("insert income: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("income id: %w", err)
	}

	slog.InfoContext(ctx, "Income saved",
		"id", id,
		"user_id", in.UserID,
		"source", in.Source,
		"amount", in.Amount)
	return id, nil
}

// UpdateIncome rewrites all mutable fields of an income row.
func (r *SQLiteRepository) UpdateIncome(ctx context.Context, in core.Income) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE income
		SET account_id = ?, source = ?, amount = ?, date = ?, description = ?,
		    notes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?
	`, nullableID(in.AccountID), in.Source, in.Amount, in.Date.String(), in.Description, in.Notes, in.ID, in.UserID)
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	return requireRow(res)
}

// ListIncome returns the user's income newest first, optionally restricted
// to one calendar month.
func (r *SQLiteRepository) ListIncome(ctx context.Context, userID int64, month, year int) ([]core.Income, error) {
	q := incomeSelect + ` WHERE user_id = ?`
	args := []any{userID}
	if month > 0 && year > 0 {
		q += ` AND strftime('%m', date) = ? AND strftime('%Y', date) = ?`
		args = append(args, fmt.Sprintf("%02d", month), fmt.Sprintf("%d", year))
	}
	q += ` ORDER BY date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list income: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

// DeleteIncome snapshots the row into the trash bin, then removes it.
func (r *SQLiteRepository) DeleteIncome(ctx context.Context, userID, id int64) error {
	row := r.db.QueryRowContext(ctx, incomeSelect+` WHERE id = ? AND user_id = ?`, id, userID)
	in, err := scanIncome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := trashSnapshot(ctx, tx, userID, "income", in); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM income WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	return tx.Commit()
}

// TrashItem is a recoverable snapshot of a deleted ledger entry.
type TrashItem struct {
	ID       int64
	UserID   int64
	ItemType string // "expense" or "income"
	ItemData string // JSON snapshot
}

// ListTrash returns trash items newest first.
func (r *SQLiteRepository) ListTrash(ctx context.Context, userID int64) ([]TrashItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, item_type, item_data
		FROM trash_bin WHERE user_id = ? ORDER BY id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list trash: %w", err)
	}
	defer rows.Close()

	var out []TrashItem
	for rows.Next() {
		var t TrashItem
		if err := rows.Scan(&t.ID, &t.UserID, &t.ItemType, &t.ItemData); err != nil {
			return nil, fmt.Errorf("scan trash item: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RestoreTrashItem re-inserts a snapshot as a fresh row (new id) and drops
// it from the trash.
func (r *SQLiteRepository) RestoreTrashItem(ctx context.Context, userID, trashID int64) error {
	var item TrashItem
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, item_type, item_data FROM trash_bin WHERE id = ? AND user_id = ?
	`, trashID, userID).Scan(&item.ID, &item.UserID, &item.ItemType, &item.ItemData)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get trash item: %w", err)
	}

	switch item.ItemType {
	case "expense":
		var e core.Expense
		if err := json.Unmarshal([]byte(item.ItemData), &e); err != nil {
			return fmt.Errorf("decode expense snapshot: %w", err)
		}
		e.UserID = userID
		if _, err := r.CreateExpense(ctx, e); err != nil {
			return err
		}
	case "income":
		var in core.Income
		if err := json.Unmarshal([]byte(item.ItemData), &in); err != nil {
			return fmt.Errorf("decode income snapshot: %w", err)
		}
		in.UserID = userID
		if _, err := r.CreateIncome(ctx, in); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown trash item type %q", item.ItemType)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM trash_bin WHERE id = ? AND user_id = ?`, trashID, userID); err != nil {
		return fmt.Errorf("remove trash item: %w", err)
	}
	return nil
}

const expenseSelect = `
	SELECT id, user_id, account_id, category, amount, date,
	       COALESCE(description, ''), COALESCE(payment_method, ''), COALESCE(notes, ''),
	       created_at, updated_at
	FROM expenses`

const incomeSelect = `
	SELECT id, user_id, account_id, source, amount, date,
	       COALESCE(description, ''), COALESCE(notes, ''),
	       created_at, updated_at
	FROM income`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*core.Expense, error) {
	var e core.Expense
	var accountID sql.NullInt64
	var date string
	var createdAt, updatedAt sql.NullString
	err := row.Scan(&e.ID, &e.UserID, &accountID, &e.Category, &e.Amount, &date,
		&e.Description, &e.PaymentMethod, &e.Notes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan expense: %w", err)
	}
	e.AccountID = scanNullableID(accountID)
	e.Date = parseStoredDate(date)
	e.CreatedAt = parseTimestamp(createdAt)
	e.UpdatedAt = parseTimestamp(updatedAt)
	return &e, nil
}

func scanIncome(row rowScanner) (*core.Income, error) {
	var in core.Income
	var accountID sql.NullInt64
	var date string
	var createdAt, updatedAt sql.NullString
	err := row.Scan(&in.ID, &in.UserID, &accountID, &in.Source, &in.Amount, &date,
		&in.Description, &in.Notes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan income: %w", err)
	}
	in.AccountID = scanNullableID(accountID)
	in.Date = parseStoredDate(date)
	in.CreatedAt = parseTimestamp(createdAt)
	in.UpdatedAt = parseTimestamp(updatedAt)
	return &in, nil
}

func trashSnapshot(ctx context.Context, tx *sql.Tx, userID int64, itemType string, item any) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", itemType, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trash_bin (user_id, item_type, item_data) VALUES (?, ?, ?)
	`, userID, itemType, string(data)); err != nil {
		return fmt.Errorf("insert trash snapshot: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
