// Package export writes ledger data as CSV or JSON for spreadsheets and
// backups.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/sync/errgroup"

	"kosh/internal/core"
	"kosh/internal/storage"
)

// Exporter serializes one month of ledger activity. Expenses and income are
// fetched concurrently since the queries are independent.
type Exporter struct {
	storage *storage.SQLiteRepository
}

func NewExporter(storage *storage.SQLiteRepository) *Exporter {
	return &Exporter{storage: storage}
}

// MonthData is the combined ledger activity for one month.
type MonthData struct {
	Month    int            `json:"month"`
	Year     int            `json:"year"`
	Expenses []core.Expense `json:"expenses"`
	Income   []core.Income  `json:"income"`
}

// Month loads both sides of the ledger for the given month.
func (e *Exporter) Month(ctx context.Context, userID int64, month, year int) (*MonthData, error) {
	data := &MonthData{Month: month, Year: year}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		expenses, err := e.storage.ListExpenses(gctx, userID, month, year)
		if err != nil {
			return fmt.Errorf("load expenses: %w", err)
		}
		data.Expenses = expenses
		return nil
	})
	g.Go(func() error {
		income, err := e.storage.ListIncome(gctx, userID, month, year)
		if err != nil {
			return fmt.Errorf("load income: %w", err)
		}
		data.Income = income
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteCSV renders the month as one flat CSV table. Expense rows carry an
// empty source column and income rows an empty category column, so both
// sides fit one header.
func (e *Exporter) WriteCSV(ctx context.Context, userID int64, month, year int, w io.Writer) error {
	data, err := e.Month(ctx, userID, month, year)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"kind", "date", "amount", "category", "source", "description", "payment_method", "notes"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range data.Expenses {
		rec := []string{"expense", e.Date.String(), formatAmount(e.Amount), e.Category, "", e.Description, e.PaymentMethod, e.Notes}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write expense row: %w", err)
		}
	}
	for _, in := range data.Income {
		rec := []string{"income", in.Date.String(), formatAmount(in.Amount), "", in.Source, in.Description, "", in.Notes}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write income row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteJSON renders the month as an indented JSON document.
func (e *Exporter) WriteJSON(ctx context.Context, userID int64, month, year int, w io.Writer) error {
	data, err := e.Month(ctx, userID, month, year)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

func formatAmount(a float64) string {
	return strconv.FormatFloat(a, 'f', 2, 64)
}
