package statement

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		sample string
		want   Provider
	}{
		{"Transaction Statement for PhonePe wallet", ProviderPhonePe},
		{"PAYTM Payments Bank statement", ProviderPaytm},
		{"Google Pay transaction history", ProviderGPay},
		{"GPay summary", ProviderGPay},
		{"Some Bank Ltd.", ProviderGeneric},
		{"", ProviderGeneric},
	}
	for _, tt := range tests {
		if got := DetectProvider(tt.sample); got != tt.want {
			t.Errorf("DetectProvider(%q) = %s, want %s", tt.sample, got, tt.want)
		}
	}
}

func TestParsePhonePeLine(t *testing.T) {
	pages := []string{
		"Transaction Statement for 98XXXXXX21\n" +
			"Date Transaction Details Type Amount\n" +
			"Jan 5, 2024 Paid to Acme Store DEBIT Rs.1,234.50\n" +
			"Transaction ID T2401051234\n" +
			"UTR No. 400123456789\n" +
			"Jan 6, 2024 Received from Jane CREDIT Rs.500.00\n" +
			"Transaction ID T2401069999\n" +
			"Page 1 of 3\n" +
			"This is a system generated statement\n",
	}

	txns := Parse(pages, ProviderPhonePe)
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}

	first := txns[0]
	if first.Date != "2024-01-05" {
		t.Errorf("date = %q, want 2024-01-05", first.Date)
	}
	if first.RawDate != "Jan 5, 2024" {
		t.Errorf("raw date = %q", first.RawDate)
	}
	if first.Type != Debit {
		t.Errorf("type = %q, want DEBIT", first.Type)
	}
	if first.Amount != 1234.50 {
		t.Errorf("amount = %v, want 1234.50", first.Amount)
	}
	if first.Details != "Paid to Acme Store" {
		t.Errorf("details = %q", first.Details)
	}
	if first.TxnID != "T2401051234" {
		t.Errorf("txn id = %q", first.TxnID)
	}
	if first.UTRNo != "400123456789" {
		t.Errorf("utr = %q", first.UTRNo)
	}

	second := txns[1]
	if second.Type != Credit || second.Amount != 500 || second.TxnID != "T2401069999" {
		t.Errorf("second txn = %+v", second)
	}
}

func TestParseGenericDateShapes(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"month name", "Jan 5, 2024 Paid to Shop DEBIT 100", "2024-01-05"},
		{"day first dashes", "05-01-2024 Paid to Shop DEBIT 100", "2024-01-05"},
		{"iso", "2024-01-05 Paid to Shop DEBIT 100", "2024-01-05"},
		{"day first slashes", "05/01/2024 Paid to Shop DEBIT 100", "2024-01-05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns := Parse([]string{tt.line}, ProviderGeneric)
			if len(txns) != 1 {
				t.Fatalf("got %d transactions, want 1", len(txns))
			}
			if txns[0].Date != tt.want {
				t.Errorf("date = %q, want %q", txns[0].Date, tt.want)
			}
		})
	}
}

func TestParseGenericInfersDirection(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"Jan 5, 2024 Paid to Acme 250.00", Debit},
		{"Jan 5, 2024 Sent to Jane 90.00", Debit},
		{"Jan 5, 2024 Received from Employer 5000.00", Credit},
		{"Jan 5, 2024 Mystery merchant 42.00", Debit},
	}
	for _, tt := range tests {
		txns := Parse([]string{tt.line}, ProviderGeneric)
		if len(txns) != 1 {
			t.Fatalf("line %q: got %d transactions", tt.line, len(txns))
		}
		if txns[0].Type != tt.want {
			t.Errorf("line %q: type = %q, want %q", tt.line, txns[0].Type, tt.want)
		}
	}
}

func TestParseDedup(t *testing.T) {
	// Same txn id on two pages: only the first survives.
	pages := []string{
		"Jan 5, 2024 Paid to Acme DEBIT 100\nTransaction ID TX1\n",
		"Jan 5, 2024 Paid to Acme DEBIT 100\nTransaction ID TX1\n" +
			"Jan 6, 2024 Paid to Acme DEBIT 100\nTransaction ID TX2\n",
	}
	txns := Parse(pages, ProviderPhonePe)
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2 after dedup", len(txns))
	}
	if txns[0].TxnID != "TX1" || txns[1].TxnID != "TX2" {
		t.Errorf("unexpected txns: %+v", txns)
	}

	// No txn id: identical visible fields collapse, differing ones survive.
	pages = []string{
		"Jan 5, 2024 Paid to Acme DEBIT 100\n" +
			"Jan 5, 2024 Paid to Acme DEBIT 100\n" +
			"Jan 5, 2024 Paid to Acme DEBIT 200\n",
	}
	txns = Parse(pages, ProviderPhonePe)
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}
}

func TestCleanAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"Rs.1,234.50", 1234.50},
		{"₹500", 500},
		{"1000", 1000},
		{"12.34", 12.34},
		{"--", 0.0},
		{"", 0.0},
	}
	for _, tt := range tests {
		if got := cleanAmount(tt.raw); got != tt.want {
			t.Errorf("cleanAmount(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeDatePassthrough(t *testing.T) {
	if got := normalizeDate("not a date"); got != "not a date" {
		t.Errorf("unknown shape should pass through, got %q", got)
	}
	if got := normalizeDate("Feb 29, 2024"); got != "2024-02-29" {
		t.Errorf("leap day = %q", got)
	}
}

func TestEnhanceDescription(t *testing.T) {
	tests := []struct {
		name    string
		details string
		txnType string
		txnID   string
		want    string
	}{
		{"paid to", "Paid to Acme Store", Debit, "TX9", "PhonePe payment to Acme Store (TX9)"},
		{"received from", "Received from Jane", Credit, "", "PhonePe receipt from Jane"},
		{"fallback", "ATM WDL 4421", Debit, "TX1", "PhonePe debit - ATM WDL 4421 (TX1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnhanceDescription(tt.details, tt.txnType, tt.txnID, ProviderPhonePe)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnhanceDescriptionTruncatesOnRuneBoundary(t *testing.T) {
	// A long Devanagari merchant name must be cut between characters,
	// never inside a multi-byte sequence.
	details := "Paid to " + strings.Repeat("क", 300)
	got := EnhanceDescription(details, Debit, "TX1", ProviderPhonePe)

	if !utf8.ValidString(got) {
		t.Fatalf("truncated description is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != maxDescriptionLen {
		t.Errorf("rune count = %d, want %d", n, maxDescriptionLen)
	}
}

func TestSkipLine(t *testing.T) {
	skipped := []string{
		"Page 2 of 7",
		"This is a system generated statement and does not require signature",
		"Date Transaction Details Type Amount",
		"Transaction Statement for 98XXXXXX21",
		"03:45 pm",
	}
	for _, ln := range skipped {
		if !skipLine(ln) {
			t.Errorf("skipLine(%q) = false, want true", ln)
		}
	}
	if skipLine("Jan 5, 2024 Paid to Acme DEBIT 100") {
		t.Error("transaction line must not be skipped")
	}
}
