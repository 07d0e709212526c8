package core

import (
	"testing"
)

func TestNextOccurrence(t *testing.T) {
	start := NewDate(2024, 1, 1)

	tests := []struct {
		name string
		freq Frequency
		want string
	}{
		{"weekly adds 7 days", Weekly, "2024-01-08"},
		{"monthly adds 30 days", Monthly, "2024-01-31"},
		{"quarterly adds 90 days", Quarterly, "2024-03-31"},
		{"yearly adds 365 days", Yearly, "2024-12-31"},
		{"unknown falls back to 30 days", Frequency("fortnightly"), "2024-01-31"},
		{"empty falls back to 30 days", Frequency(""), "2024-01-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(start, tt.freq)
			if got.String() != tt.want {
				t.Errorf("NextOccurrence(%s, %s) = %s, want %s", start, tt.freq, got, tt.want)
			}
			if !got.After(start.Time) {
				t.Errorf("NextOccurrence must always move forward, got %s from %s", got, start)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Errorf("round trip = %s", d)
	}
	if _, err := ParseDate("29/02/2024"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestRecurringBillValidate(t *testing.T) {
	valid := RecurringBill{
		Title:     "Rent",
		Category:  "Housing",
		Amount:    1200,
		Frequency: Monthly,
		StartDate: NewDate(2024, 1, 1),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid bill rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RecurringBill)
	}{
		{"empty title", func(b *RecurringBill) { b.Title = "  " }},
		{"empty category", func(b *RecurringBill) { b.Category = "" }},
		{"zero amount", func(b *RecurringBill) { b.Amount = 0 }},
		{"negative amount", func(b *RecurringBill) { b.Amount = -5 }},
		{"zero start date", func(b *RecurringBill) { b.StartDate = Date{} }},
		{"bad frequency", func(b *RecurringBill) { b.Frequency = "hourly" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			if err := b.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMarkers(t *testing.T) {
	if got := StatementMarker("T123abc"); got != "[STATEMENT:T123abc]" {
		t.Errorf("StatementMarker = %q", got)
	}
	if got := AutoRecurringNote("Gym"); got != "[Auto Recurring] Gym" {
		t.Errorf("AutoRecurringNote = %q", got)
	}
	// Untitled bills still get the bare tag, trimmed.
	if got := AutoRecurringNote(""); got != "[Auto Recurring]" {
		t.Errorf("AutoRecurringNote(\"\") = %q", got)
	}
}

func TestGoalProgress(t *testing.T) {
	g := Goal{TargetAmount: 2000, CurrentAmount: 500}
	if got := g.Progress(); got != 25 {
		t.Errorf("Progress = %v, want 25", got)
	}
	if got := (Goal{TargetAmount: 0, CurrentAmount: 10}).Progress(); got != 0 {
		t.Errorf("zero target Progress = %v, want 0", got)
	}
}
