// Package storage is the SQLite-backed ledger store. All reads and writes
// are scoped by user id; uniqueness and foreign-key invariants live here.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kosh/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists every ledger entity: expenses, income, budgets,
// recurring bills, import rules, goals, notifications and sessions.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if necessary) the database at dbPath
// and runs pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a new user row. Username and email are unique.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, email, passwordHash, salt, fullName string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, salt, full_name)
		VALUES (?, ?, ?, ?, ?)
	`, username, email, passwordHash, salt, fullName)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user id: %w", err)
	}
	return id, nil
}

// GetUserByUsername returns core.ErrNotFound when no such user exists.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, salt, COALESCE(full_name, ''), created_at
		FROM users WHERE username = ?
	`, username)

	var u core.User
	var createdAt sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Salt, &u.FullName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = parseTimestamp(createdAt)
	return &u, nil
}

// Summary aggregates total income, total expenses and balance for a user.
func (r *SQLiteRepository) Summary(ctx context.Context, userID int64) (core.Summary, error) {
	var s core.Summary
	row := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COALESCE(SUM(amount), 0) FROM income WHERE user_id = ?),
			(SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE user_id = ?)
	`, userID, userID)
	if err := row.Scan(&s.TotalIncome, &s.TotalExpenses); err != nil {
		return s, fmt.Errorf("scan summary: %w", err)
	}
	s.Balance = s.TotalIncome - s.TotalExpenses
	return s, nil
}

// parseTimestamp leniently decodes SQLite's CURRENT_TIMESTAMP text. Zero
// time on failure; timestamps are informational, never load-bearing.
func parseTimestamp(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseStoredDate decodes a TEXT date column. Unparseable values yield the
// zero date rather than failing the whole query.
func parseStoredDate(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func scanNullableID(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
