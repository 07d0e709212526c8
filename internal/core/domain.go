package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency is the repetition schedule of a recurring bill.
type Frequency string

const (
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

type (
	// User is an authenticated owner of a ledger.
	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		Salt         string    `json:"-"`
		FullName     string    `json:"full_name"`
		CreatedAt    time.Time `json:"created_at"`
	}

	// Expense is a single outgoing ledger entry.
	Expense struct {
		ID            int64     `json:"id"`
		UserID        int64     `json:"user_id"`
		AccountID     *int64    `json:"account_id,omitempty"` // optional managed sub-ledger
		Category      string    `json:"category"`
		Amount        float64   `json:"amount"`
		Date          Date      `json:"date"`
		Description   string    `json:"description"`
		PaymentMethod string    `json:"payment_method"`
		Notes         string    `json:"notes"`
		CreatedAt     time.Time `json:"created_at"`
		UpdatedAt     time.Time `json:"updated_at"`
	}

	// Income is a single incoming ledger entry.
	Income struct {
		ID          int64     `json:"id"`
		UserID      int64     `json:"user_id"`
		AccountID   *int64    `json:"account_id,omitempty"`
		Source      string    `json:"source"`
		Amount      float64   `json:"amount"`
		Date        Date      `json:"date"`
		Description string    `json:"description"`
		Notes       string    `json:"notes"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	// Budget is a monthly spending limit for one category.
	// Unique per (user, category, month, year).
	Budget struct {
		ID          int64   `json:"id"`
		UserID      int64   `json:"user_id"`
		Category    string  `json:"category"`
		LimitAmount float64 `json:"limit_amount"`
		Month       int     `json:"month"`
		Year        int     `json:"year"`
	}

	// RecurringBill is a template that periodically materializes an expense.
	// NextDueDate only ever advances forward; it is mutated exclusively by
	// the recurring processor.
	RecurringBill struct {
		ID            int64     `json:"id"`
		UserID        int64     `json:"user_id"`
		Title         string    `json:"title"`
		Category      string    `json:"category"`
		Amount        float64   `json:"amount"`
		Frequency     Frequency `json:"frequency"`
		StartDate     Date      `json:"start_date"`
		NextDueDate   Date      `json:"next_due_date"`
		PaymentMethod string    `json:"payment_method"`
		Description   string    `json:"description"`
		Active        bool      `json:"active"`
		LastRunAt     time.Time `json:"last_run_at"` // zero if never fired
	}

	// ImportRule maps a merchant keyword to a category (and optionally a
	// managed account) during statement import. Keywords are stored
	// lowercased and matched longest-first.
	ImportRule struct {
		ID          int64  `json:"id"`
		UserID      int64  `json:"user_id"`
		Keyword     string `json:"keyword"`
		Category    string `json:"category"`
		AccountName string `json:"account_name,omitempty"`
	}

	// ManagedAccount is a user-defined sub-ledger grouping, distinct from
	// the authenticated user.
	ManagedAccount struct {
		ID          int64  `json:"id"`
		UserID      int64  `json:"user_id"`
		AccountName string `json:"account_name"`
		AccountType string `json:"account_type"`
		Email       string `json:"email,omitempty"`
		Phone       string `json:"phone,omitempty"`
		Notes       string `json:"notes,omitempty"`
	}

	// Goal is a savings target with manual progress updates.
	Goal struct {
		ID            int64   `json:"id"`
		UserID        int64   `json:"user_id"`
		Title         string  `json:"title"`
		TargetAmount  float64 `json:"target_amount"`
		CurrentAmount float64 `json:"current_amount"`
		DueDate       Date    `json:"due_date"`
	}

	// Notification is a system or user alert.
	Notification struct {
		ID        int64     `json:"id"`
		UserID    int64     `json:"user_id"`
		Title     string    `json:"title"`
		Message   string    `json:"message"`
		Severity  string    `json:"severity"` // "info", "warning", "danger"
		Read      bool      `json:"read"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Summary is the aggregate ledger position for one user.
	Summary struct {
		TotalIncome   float64 `json:"total_income"`
		TotalExpenses float64 `json:"total_expenses"`
		Balance       float64 `json:"balance"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyKeyword     = errors.New("empty keyword")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrNotFound         = errors.New("not found")
)

// Progress returns goal completion as a percentage of the target.
// A non-positive target yields 0 rather than dividing by zero.
func (g Goal) Progress() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	return g.CurrentAmount / g.TargetAmount * 100
}

func (e Expense) Validate() error {
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (i Income) Validate() error {
	if i.Amount <= 0 {
		return ErrInvalidAmount
	}
	if i.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(i.Source) == "" {
		return errors.New("empty source")
	}
	return nil
}

func (b Budget) Validate() error {
	if b.LimitAmount <= 0 {
		return ErrInvalidAmount
	}
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if b.Year < 1970 {
		return ErrInvalidYear
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (b RecurringBill) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Amount <= 0 {
		return ErrInvalidAmount
	}
	if b.StartDate.IsZero() {
		return ErrInvalidDate
	}
	switch b.Frequency {
	case Weekly, Monthly, Quarterly, Yearly:
	default:
		return ErrInvalidFrequency
	}
	return nil
}

func (r ImportRule) Validate() error {
	if strings.TrimSpace(r.Keyword) == "" {
		return ErrEmptyKeyword
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// AutoRecurringNote is the literal notes tag that marks an expense as
// materialized from a recurring bill. The shape is load-bearing: the UI and
// re-import dedup logic recognize entries by this prefix.
func AutoRecurringNote(title string) string {
	return strings.TrimSpace("[Auto Recurring] " + title)
}

// StatementMarker is the literal notes tag embedding a statement transaction
// id. It is the only cross-session duplicate-detection mechanism for
// statement imports, so the shape must not change.
func StatementMarker(txnID string) string {
	return fmt.Sprintf("[STATEMENT:%s]", txnID)
}
