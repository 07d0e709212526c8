package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kosh/internal/core"
)

// AddImportRule stores a keyword rule. Keywords are lowercased on the way
// in so containment checks never have to normalize the stored side.
func (r *SQLiteRepository) AddImportRule(ctx context.Context, rule core.ImportRule) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO import_rules (user_id, keyword, category, account_name)
		VALUES (?, ?, ?, ?)
	`, rule.UserID, strings.ToLower(strings.TrimSpace(rule.Keyword)), strings.TrimSpace(rule.Category), strings.TrimSpace(rule.AccountName))
	if err != nil {
		return 0, fmt.Errorf("insert import rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("import rule id: %w", err)
	}
	return id, nil
}

// ListImportRules returns rules longest keyword first (ties broken newest
// first) so more specific rules always win containment matching.
func (r *SQLiteRepository) ListImportRules(ctx context.Context, userID int64) ([]core.ImportRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, keyword, category, COALESCE(account_name, '')
		FROM import_rules
		WHERE user_id = ?
		ORDER BY LENGTH(keyword) DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list import rules: %w", err)
	}
	defer rows.Close()

	var out []core.ImportRule
	for rows.Next() {
		var rule core.ImportRule
		if err := rows.Scan(&rule.ID, &rule.UserID, &rule.Keyword, &rule.Category, &rule.AccountName); err != nil {
			return nil, fmt.Errorf("scan import rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// DeleteImportRule removes one rule.
func (r *SQLiteRepository) DeleteImportRule(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM import_rules WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete import rule: %w", err)
	}
	return requireRow(res)
}

// FindImportRule returns the first rule whose keyword is contained in text,
// scanning longest keyword first. Nil when nothing matches.
func (r *SQLiteRepository) FindImportRule(ctx context.Context, userID int64, text string) (*core.ImportRule, error) {
	source := strings.ToLower(text)
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}
	rules, err := r.ListImportRules(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		kw := strings.TrimSpace(strings.ToLower(rule.Keyword))
		if kw != "" && strings.Contains(source, kw) {
			matched := rule
			return &matched, nil
		}
	}
	return nil, nil
}

// SuggestCategory returns the most frequent past expense category whose
// description contains text (case-insensitive). Count ties break
// alphabetically so the suggestion is deterministic. Empty string when the
// history has nothing to offer.
func (r *SQLiteRepository) SuggestCategory(ctx context.Context, userID int64, text string) (string, error) {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return "", nil
	}
	var category string
	err := r.db.QueryRowContext(ctx, `
		SELECT category
		FROM expenses
		WHERE user_id = ? AND description IS NOT NULL AND LOWER(description) LIKE ?
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC
		LIMIT 1
	`, userID, "%"+text+"%").Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("suggest category: %w", err)
	}
	return category, nil
}

// StatementTxnExists reports whether any ledger entry already carries the
// [STATEMENT:<txn_id>] marker in its notes. This is the cross-session
// import idempotence check; the marker lives in free text, not a column.
func (r *SQLiteRepository) StatementTxnExists(ctx context.Context, userID int64, txnID string) (bool, error) {
	if txnID == "" {
		return false, nil
	}
	marker := "%" + core.StatementMarker(txnID) + "%"
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM expenses WHERE user_id = ? AND notes LIKE ?
		UNION
		SELECT 1 FROM income WHERE user_id = ? AND notes LIKE ?
		LIMIT 1
	`, userID, marker, userID, marker).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("statement txn lookup: %w", err)
	}
	return true, nil
}

// ImportSession is the audit record of one statement commit.
type ImportSession struct {
	ID       string
	UserID   int64
	FileName string
	Provider string
	Imported int
	Skipped  int
}

// CreateImportSession records one statement commit for audit history.
func (r *SQLiteRepository) CreateImportSession(ctx context.Context, s ImportSession) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO import_sessions (id, user_id, file_name, provider, imported, skipped)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.FileName, s.Provider, s.Imported, s.Skipped); err != nil {
		return fmt.Errorf("insert import session: %w", err)
	}
	return nil
}

// ListImportSessions returns commit history newest first.
func (r *SQLiteRepository) ListImportSessions(ctx context.Context, userID int64) ([]ImportSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, file_name, provider, imported, skipped
		FROM import_sessions WHERE user_id = ? ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list import sessions: %w", err)
	}
	defer rows.Close()

	var out []ImportSession
	for rows.Next() {
		var s ImportSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.FileName, &s.Provider, &s.Imported, &s.Skipped); err != nil {
			return nil, fmt.Errorf("scan import session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
