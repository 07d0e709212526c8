package http

import (
	"net/http"

	"kosh/internal/core"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, userID int64) {
	month, year := parseYearMonth(r)
	budgets, err := s.storage.ListBudgets(r.Context(), userID, month, year)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

type budgetRequest struct {
	Category    string  `json:"category"`
	LimitAmount float64 `json:"limit_amount"`
	Month       int     `json:"month"`
	Year        int     `json:"year"`
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request, userID int64) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	budget := core.Budget{
		UserID:      userID,
		Category:    req.Category,
		LimitAmount: req.LimitAmount,
		Month:       req.Month,
		Year:        req.Year,
	}
	if err := budget.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.storage.UpsertBudget(r.Context(), budget)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.storage.DeleteBudget(r.Context(), userID, id); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type budgetReportEntry struct {
	core.BudgetReport
	Status core.BudgetStatus `json:"status"`
}

// handleBudgetReport returns spent-vs-limit for every budget in the month,
// or for a single category when ?category= is given.
func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request, userID int64) {
	month, year := parseYearMonth(r)

	if category := r.URL.Query().Get("category"); category != "" {
		report, err := s.reconciler.Reconcile(r.Context(), userID, category, month, year)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, budgetReportEntry{BudgetReport: *report, Status: report.Status()})
		return
	}

	reports, err := s.reconciler.ReconcileAll(r.Context(), userID, month, year)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	entries := make([]budgetReportEntry, 0, len(reports))
	for _, rep := range reports {
		entries = append(entries, budgetReportEntry{BudgetReport: rep, Status: rep.Status()})
	}
	writeJSON(w, http.StatusOK, entries)
}

type billRequest struct {
	Title         string  `json:"title"`
	Category      string  `json:"category"`
	Amount        float64 `json:"amount"`
	Frequency     string  `json:"frequency"`
	StartDate     string  `json:"start_date"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Description   string  `json:"description,omitempty"`
	Active        *bool   `json:"active,omitempty"`
}

func (req billRequest) toBill(userID int64) (core.RecurringBill, error) {
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		return core.RecurringBill{}, core.ErrInvalidDate
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return core.RecurringBill{
		UserID:        userID,
		Title:         req.Title,
		Category:      req.Category,
		Amount:        req.Amount,
		Frequency:     core.Frequency(req.Frequency),
		StartDate:     start,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
		Active:        active,
	}, nil
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request, userID int64) {
	activeOnly := r.URL.Query().Get("active") == "1"
	bills, err := s.storage.ListRecurringBills(r.Context(), userID, activeOnly)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request, userID int64) {
	var req billRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	bill, err := req.toBill(userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := bill.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.storage.CreateRecurringBill(r.Context(), bill)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req billRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	bill, err := req.toBill(userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bill.ID = id
	if err := bill.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.storage.UpdateRecurringBill(r.Context(), bill); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (s *Server) handleSetBillActive(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.storage.SetRecurringBillActive(r.Context(), userID, id, req.Active); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.storage.DeleteRecurringBill(r.Context(), userID, id); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunBills fires all bills due as of the given date (default today).
func (s *Server) handleRunBills(w http.ResponseWriter, r *http.Request, userID int64) {
	runDate := core.Today()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := core.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		runDate = parsed
	}

	fired, err := s.processor.RunDueBills(r.Context(), userID, runDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"fired": fired})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request, userID int64) {
	rules, err := s.storage.ListImportRules(r.Context(), userID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		Keyword     string `json:"keyword"`
		Category    string `json:"category"`
		AccountName string `json:"account_name,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rule := core.ImportRule{
		UserID:      userID,
		Keyword:     req.Keyword,
		Category:    req.Category,
		AccountName: req.AccountName,
	}
	if err := rule.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.storage.AddImportRule(r.Context(), rule)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.storage.DeleteImportRule(r.Context(), userID, id); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
