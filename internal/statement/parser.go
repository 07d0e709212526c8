package statement

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Provider identifies the statement layout family.
type Provider string

const (
	ProviderAuto    Provider = "Auto"
	ProviderPhonePe Provider = "PhonePe"
	ProviderPaytm   Provider = "Paytm"
	ProviderGPay    Provider = "GPay"
	ProviderGeneric Provider = "Generic"
)

// Transaction direction markers as they appear in statements.
const (
	Debit  = "DEBIT"
	Credit = "CREDIT"
)

// Transaction is one parsed statement line group. Date is normalized to
// YYYY-MM-DD when one of the known formats matched; RawDate keeps the
// original text either way.
type Transaction struct {
	Date    string
	RawDate string
	Details string
	Type    string
	Amount  float64
	TxnID   string
	UTRNo   string
	Page    int
}

// DetectProvider guesses the layout family from sample text, usually the
// first page. Unknown layouts fall back to the generic parser.
func DetectProvider(sample string) Provider {
	s := strings.ToLower(sample)
	switch {
	case strings.Contains(s, "phonepe"):
		return ProviderPhonePe
	case strings.Contains(s, "paytm"):
		return ProviderPaytm
	case strings.Contains(s, "google pay"), strings.Contains(s, "gpay"):
		return ProviderGPay
	default:
		return ProviderGeneric
	}
}

// PhonePe statements put date, details, direction and amount on one line,
// with transaction id and UTR on follow-up lines.
var phonePeLine = regexp.MustCompile(
	`^([A-Za-z]{3}\s+\d{1,2},\s+\d{4})\s+(.+?)\s+(DEBIT|CREDIT)\s+(\S+)$`)

// The generic pattern accepts more date shapes and makes the direction
// column optional; direction is then inferred from the details text.
var genericLine = regexp.MustCompile(
	`(?i)^([A-Za-z]{3}\s+\d{1,2},\s+\d{4}|\d{2}[/-]\d{2}[/-]\d{4}|\d{4}-\d{2}-\d{2})\s+(.+?)\s+(?:(DEBIT|CREDIT)\s+)?(\S+)$`)

var (
	phonePeTxnID = regexp.MustCompile(`(?i)Transaction ID\s+([A-Za-z0-9]+)`)
	phonePeUTR   = regexp.MustCompile(`(?i)UTR No\.\s*([A-Za-z0-9]+)`)
	genericTxnID = regexp.MustCompile(`(?i)(?:Transaction ID|Txn ID)\s*[:.]?\s*([A-Za-z0-9]+)`)
	genericUTR   = regexp.MustCompile(`(?i)UTR(?: No\.)?\s*[:.]?\s*([A-Za-z0-9]+)`)

	orphanTime = regexp.MustCompile(`^\d{2}\D\d{2}\s*(am|pm)$`)
	nonAmount  = regexp.MustCompile(`[^0-9.,]`)
)

// Parse runs the provider's line parser over the page texts and
// de-duplicates the result. Every provider except PhonePe uses the generic
// parser.
func Parse(pages []string, provider Provider) []Transaction {
	var txns []Transaction
	if provider == ProviderPhonePe {
		txns = parsePages(pages, phonePeLine, phonePeTxnID, phonePeUTR, false)
	} else {
		txns = parsePages(pages, genericLine, genericTxnID, genericUTR, true)
	}
	return dedup(txns)
}

// parsePages walks each page line by line. A line matching the transaction
// pattern opens a new accumulator; id and UTR lines attach to the open one.
func parsePages(pages []string, line, txnID, utr *regexp.Regexp, inferType bool) []Transaction {
	var out []Transaction
	for pageNo, page := range pages {
		var current *Transaction
		for _, raw := range strings.Split(page, "\n") {
			ln := strings.TrimSpace(raw)
			if ln == "" || skipLine(ln) {
				continue
			}

			if m := line.FindStringSubmatch(ln); m != nil {
				if current != nil {
					out = append(out, *current)
				}
				txnType := strings.ToUpper(m[3])
				details := strings.TrimSpace(m[2])
				if txnType == "" && inferType {
					txnType = inferDirection(details)
				}
				current = &Transaction{
					Date:    normalizeDate(m[1]),
					RawDate: m[1],
					Details: details,
					Type:    txnType,
					Amount:  cleanAmount(m[4]),
					Page:    pageNo + 1,
				}
				continue
			}

			if current == nil {
				continue
			}
			if m := txnID.FindStringSubmatch(ln); m != nil {
				current.TxnID = m[1]
			}
			if m := utr.FindStringSubmatch(ln); m != nil {
				current.UTRNo = m[1]
			}
		}
		if current != nil {
			out = append(out, *current)
		}
	}
	return out
}

// skipLine drops statement boilerplate: page footers, column headers and
// orphaned time fragments from odd extractions.
func skipLine(ln string) bool {
	low := strings.ToLower(ln)
	switch {
	case strings.HasPrefix(ln, "Page "):
		return true
	case strings.Contains(low, "system generated statement"):
		return true
	case strings.HasPrefix(ln, "Date Transaction"):
		return true
	case strings.HasPrefix(ln, "Transaction Statement for"):
		return true
	case orphanTime.MatchString(low):
		return true
	}
	return false
}

// inferDirection guesses DEBIT/CREDIT from the details text when the
// statement has no explicit direction column. Unknown wording defaults to
// DEBIT: spending is the common case and a wrongly-imported expense is
// easier to spot than missing income.
func inferDirection(details string) string {
	dl := strings.ToLower(details)
	switch {
	case strings.Contains(dl, "paid to"), strings.Contains(dl, "sent to"), strings.Contains(dl, "debit"):
		return Debit
	case strings.Contains(dl, "received"), strings.Contains(dl, "credit"):
		return Credit
	default:
		return Debit
	}
}

var statementDateFormats = []string{
	"Jan 2, 2006",
	"02-01-2006",
	"2006-01-02",
	"02/01/2006",
}

// normalizeDate converts known statement date shapes to YYYY-MM-DD. Text
// matching none of them passes through unchanged so nothing is silently
// dropped before the preview.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range statementDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}

// cleanAmount strips currency symbols and thousands separators.
// Unparseable amounts become 0.0 rather than failing the whole page.
func cleanAmount(raw string) float64 {
	cleaned := strings.ReplaceAll(nonAmount.ReplaceAllString(raw, ""), ",", "")
	if cleaned == "" {
		return 0.0
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0.0
	}
	return amount
}

// dedup drops repeated transactions, keyed on the transaction id when
// present, otherwise on the visible fields. First occurrence wins.
func dedup(txns []Transaction) []Transaction {
	seen := make(map[string]bool, len(txns))
	out := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		key := t.TxnID
		if key == "" {
			key = strings.Join([]string{t.Date, t.Type, strconv.FormatFloat(t.Amount, 'f', -1, 64), t.Details}, "|")
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
