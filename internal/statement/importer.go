package statement

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"kosh/internal/cache"
	"kosh/internal/core"
	"kosh/internal/services"
	"kosh/internal/storage"
)

const (
	maxDescriptionLen = 160

	defaultPageCacheSize = 16
	defaultPageCacheTTL  = 10 * time.Minute
)

// PreviewRow is one transaction enriched for user review before commit.
type PreviewRow struct {
	Transaction
	Category        string
	Description     string
	RuleAccountName string
}

// Preview is the parsed, enriched view of one statement file.
type Preview struct {
	Provider Provider
	FileName string
	Rows     []PreviewRow
}

// Result summarizes one committed import.
type Result struct {
	SessionID string
	Imported  int
	Skipped   int
}

// Importer drives the statement import pipeline: extract, parse, enrich,
// commit. Extracted page text is cached so preview and commit of the same
// file extract only once.
type Importer struct {
	storage     *storage.SQLiteRepository
	categorizer *services.Categorizer
	extractor   Extractor
	pages       *cache.TTLCache[[]string]
}

// NewImporter builds the pipeline. cacheSize and cacheTTL bound the page
// text cache; zero or negative values take the defaults.
func NewImporter(storage *storage.SQLiteRepository, categorizer *services.Categorizer, extractor Extractor, cacheSize int, cacheTTL time.Duration) *Importer {
	if cacheSize < 1 {
		cacheSize = defaultPageCacheSize
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultPageCacheTTL
	}
	return &Importer{
		storage:     storage,
		categorizer: categorizer,
		extractor:   extractor,
		pages:       cache.New[[]string](cacheSize, cacheTTL),
	}
}

// BuildPreview extracts and parses the file, then resolves a category and a
// readable description for every transaction. preset forces a layout
// family; ProviderAuto detects it from the first page.
func (i *Importer) BuildPreview(ctx context.Context, userID int64, path string, preset Provider) (*Preview, error) {
	pages, err := i.pageTexts(ctx, path)
	if err != nil {
		return nil, err
	}

	provider := preset
	if provider == "" || provider == ProviderAuto {
		sample := ""
		if len(pages) > 0 {
			sample = pages[0]
		}
		provider = DetectProvider(sample)
	}

	txns := Parse(pages, provider)
	rows := make([]PreviewRow, 0, len(txns))
	for _, txn := range txns {
		row := PreviewRow{
			Transaction: txn,
			Description: EnhanceDescription(txn.Details, txn.Type, txn.TxnID, provider),
		}

		rule, err := i.storage.FindImportRule(ctx, userID, txn.Details)
		if err != nil {
			return nil, fmt.Errorf("apply import rules: %w", err)
		}
		if rule != nil {
			row.Category = rule.Category
			row.RuleAccountName = rule.AccountName
		} else {
			cat, err := i.categorizer.Resolve(ctx, userID, txn.Details)
			if err != nil {
				return nil, fmt.Errorf("resolve category: %w", err)
			}
			row.Category = cat
		}
		if row.Category == "" {
			row.Category = defaultCategory(txn.Type)
		}
		rows = append(rows, row)
	}

	slog.InfoContext(ctx, "Built statement preview",
		"user_id", userID,
		"file", filepath.Base(path),
		"provider", string(provider),
		"transactions", len(rows))
	return &Preview{Provider: provider, FileName: filepath.Base(path), Rows: rows}, nil
}

// Commit writes the preview rows into the ledger. Rows whose transaction id
// is already present anywhere in the ledger are skipped, so re-importing an
// overlapping statement never duplicates entries. defaultAccountID applies
// to rows without a rule-mapped account; nil means the main ledger.
func (i *Importer) Commit(ctx context.Context, userID int64, preview *Preview, defaultAccountID *int64) (Result, error) {
	res := Result{SessionID: uuid.NewString()}

	for _, row := range preview.Rows {
		if row.TxnID != "" {
			exists, err := i.storage.StatementTxnExists(ctx, userID, row.TxnID)
			if err != nil {
				return res, fmt.Errorf("duplicate check: %w", err)
			}
			if exists {
				res.Skipped++
				continue
			}
		}

		date, err := core.ParseDate(row.Date)
		if err != nil {
			slog.WarnContext(ctx, "Skipping row with unparseable date",
				"date", row.Date,
				"details", row.Details)
			res.Skipped++
			continue
		}

		accountID := defaultAccountID
		if row.RuleAccountName != "" {
			acc, err := i.storage.FindManagedAccountByName(ctx, userID, row.RuleAccountName)
			if err != nil {
				return res, fmt.Errorf("resolve rule account: %w", err)
			}
			if acc != nil {
				accountID = &acc.ID
			}
		}

		notes := strings.TrimSpace(fmt.Sprintf("%s [UTR:%s] [SOURCE:%s PDF]",
			core.StatementMarker(row.TxnID), row.UTRNo, preview.Provider))

		switch row.Type {
		case Debit:
			_, err = i.storage.CreateExpense(ctx, core.Expense{
				UserID:        userID,
				AccountID:     accountID,
				Category:      row.Category,
				Amount:        row.Amount,
				Date:          date,
				Description:   row.Description,
				PaymentMethod: "UPI",
				Notes:         notes,
			})
		case Credit:
			_, err = i.storage.CreateIncome(ctx, core.Income{
				UserID:      userID,
				AccountID:   accountID,
				Source:      row.Description,
				Amount:      row.Amount,
				Date:        date,
				Description: "Imported from statement " + row.TxnID,
				Notes:       notes,
			})
		default:
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("import row: %w", err)
		}
		res.Imported++
	}

	if err := i.storage.CreateImportSession(ctx, storage.ImportSession{
		ID:       res.SessionID,
		UserID:   userID,
		FileName: preview.FileName,
		Provider: string(preview.Provider),
		Imported: res.Imported,
		Skipped:  res.Skipped,
	}); err != nil {
		return res, fmt.Errorf("record import session: %w", err)
	}

	slog.InfoContext(ctx, "Statement import committed",
		"user_id", userID,
		"session_id", res.SessionID,
		"imported", res.Imported,
		"skipped", res.Skipped)
	return res, nil
}

func (i *Importer) pageTexts(ctx context.Context, path string) ([]string, error) {
	if pages, ok := i.pages.Get(path); ok {
		return pages, nil
	}
	pages, err := i.extractor.PageTexts(ctx, path)
	if err != nil {
		return nil, err
	}
	i.pages.Set(path, pages)
	return pages, nil
}

// EnhanceDescription rewrites raw statement details into a readable ledger
// description, tagged with the provider and transaction id.
func EnhanceDescription(details, txnType, txnID string, provider Provider) string {
	d := strings.TrimSpace(details)
	dl := strings.ToLower(d)

	var desc string
	switch {
	case strings.HasPrefix(dl, "paid to "):
		desc = fmt.Sprintf("%s payment to %s", provider, strings.TrimSpace(d[len("paid to "):]))
	case strings.HasPrefix(dl, "received from "):
		desc = fmt.Sprintf("%s receipt from %s", provider, strings.TrimSpace(d[len("received from "):]))
	default:
		desc = fmt.Sprintf("%s %s - %s", provider, strings.ToLower(txnType), d)
	}
	if txnID != "" {
		desc = fmt.Sprintf("%s (%s)", desc, txnID)
	}
	// Truncate by runes, not bytes, so multi-byte merchant names are
	// never cut mid-sequence.
	if r := []rune(desc); len(r) > maxDescriptionLen {
		desc = string(r[:maxDescriptionLen])
	}
	return desc
}

// defaultCategory is the last-resort category when rules, keywords and
// history all come up empty.
func defaultCategory(txnType string) string {
	if txnType == Credit {
		return "Income"
	}
	return "Other"
}
