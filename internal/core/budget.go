package core

// Budget health thresholds in usage percent. Notification generation and
// the API both classify against these.
const (
	BudgetWarningThreshold  = 80.0
	BudgetExceededThreshold = 100.0
)

// BudgetStatus is the health classification of a budget for a month.
type BudgetStatus string

const (
	BudgetHealthy  BudgetStatus = "Healthy"
	BudgetWarning  BudgetStatus = "Warning"
	BudgetExceeded BudgetStatus = "Exceeded"
)

// BudgetReport is the spent-vs-limit reconciliation for one
// (user, category, month, year) tuple. It is re-derived from the ledger on
// every call; nothing here is cached or stored.
type BudgetReport struct {
	Category     string  `json:"category"`
	LimitAmount  float64 `json:"limit_amount"`
	Spent        float64 `json:"spent"`
	Remaining    float64 `json:"remaining"`
	UsagePercent float64 `json:"usage_percent"`
}

// NewBudgetReport derives the report fields from a limit and a spent sum.
// usage_percent is defined as 0 when the limit is not positive, and
// remaining may go negative: that is the exceeded signal, not an error.
func NewBudgetReport(category string, limit, spent float64) BudgetReport {
	r := BudgetReport{
		Category:    category,
		LimitAmount: limit,
		Spent:       spent,
		Remaining:   limit - spent,
	}
	if limit > 0 {
		r.UsagePercent = spent / limit * 100
	}
	return r
}

// Status classifies the report against the fixed thresholds.
func (r BudgetReport) Status() BudgetStatus {
	switch {
	case r.UsagePercent >= BudgetExceededThreshold:
		return BudgetExceeded
	case r.UsagePercent >= BudgetWarningThreshold:
		return BudgetWarning
	default:
		return BudgetHealthy
	}
}
