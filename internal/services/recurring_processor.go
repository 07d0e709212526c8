package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kosh/internal/core"
	"kosh/internal/storage"
)

// RecurringProcessor materializes due bill templates into ledger expenses.
type RecurringProcessor struct {
	storage *storage.SQLiteRepository
	now     func() time.Time
}

func NewRecurringProcessor(storage *storage.SQLiteRepository) *RecurringProcessor {
	return &RecurringProcessor{storage: storage, now: time.Now}
}

// RunDueBills fires every active bill whose next due date is on or before
// runDate, once each, in due-date order. The due date advances exactly one
// step per run even when the bill is long overdue; a bill several periods
// behind catches up across successive runs, not in one. Returns the number
// of expenses created.
//
// Advancing the due date is a compare-and-set keyed on the date that was
// read, so two overlapping runs cannot fire the same bill twice: the loser
// of the race sees the CAS miss and skips the insert.
func (p *RecurringProcessor) RunDueBills(ctx context.Context, userID int64, runDate core.Date) (int, error) {
	if p.storage == nil {
		return 0, fmt.Errorf("processor not initialized")
	}

	due, err := p.storage.DueRecurringBills(ctx, userID, runDate)
	if err != nil {
		return 0, fmt.Errorf("load due bills: %w", err)
	}

	slog.InfoContext(ctx, "Processing due recurring bills",
		"user_id", userID,
		"run_date", runDate.String(),
		"due", len(due))

	fired := 0
	for _, bill := range due {
		dueDate := bill.NextDueDate
		next := core.NextOccurrence(dueDate, bill.Frequency)

		applied, err := p.storage.AdvanceRecurringBill(ctx, userID, bill.ID, dueDate, next, p.now())
		if err != nil {
			slog.ErrorContext(ctx, "Failed to advance recurring bill",
				"bill_id", bill.ID,
				"title", bill.Title,
				"error", err)
			continue
		}
		if !applied {
			// Another run already advanced this bill.
			slog.WarnContext(ctx, "Skipping already-advanced bill",
				"bill_id", bill.ID,
				"title", bill.Title)
			continue
		}

		description := bill.Description
		if description == "" {
			description = bill.Title
		}

		expense := core.Expense{
			UserID:        userID,
			Category:      bill.Category,
			Amount:        bill.Amount,
			Date:          dueDate,
			Description:   description,
			PaymentMethod: bill.PaymentMethod,
			Notes:         core.AutoRecurringNote(bill.Title),
		}
		if _, err := p.storage.CreateExpense(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to create expense from bill",
				"bill_id", bill.ID,
				"title", bill.Title,
				"error", err)
			continue
		}
		fired++
	}

	slog.InfoContext(ctx, "Recurring bill run complete",
		"user_id", userID,
		"fired", fired)
	return fired, nil
}
