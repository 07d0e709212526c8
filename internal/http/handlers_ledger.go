package http

import (
	"net/http"

	"kosh/internal/core"
)

type expenseRequest struct {
	AccountID     *int64  `json:"account_id,omitempty"`
	Category      string  `json:"category"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	Description   string  `json:"description,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

func (req expenseRequest) toExpense(userID int64) (core.Expense, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Expense{}, core.ErrInvalidDate
	}
	return core.Expense{
		UserID:        userID,
		AccountID:     req.AccountID,
		Category:      req.Category,
		Amount:        req.Amount,
		Date:          date,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}, nil
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, userID int64) {
	month, year := parseYearMonth(r)
	expenses, err := s.storage.ListExpenses(r.Context(), userID, month, year)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, userID int64) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	expense, err := req.toExpense(userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := expense.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.storage.CreateExpense(r.Context(), expense)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	expense, err := req.toExpense(userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	expense.ID = id
	if err := expense.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.storage.UpdateExpense(r.Context(), expense); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.storage.DeleteExpense(r.Context(), userID, id); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type incomeRequest struct {
	AccountID   *int64  `json:"account_id,omitempty"`
	Source      string  `json:"source"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

func (s *Server) handleListIncome(w http.ResponseWriter, r *http.Request, userID int64) {
	month, year := parseYearMonth(r)
	income, err := s.storage.ListIncome(r.Context(), userID, month, year)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, income)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request, userID int64) {
	var req incomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, core.ErrInvalidDate.Error())
		return
	}
	income := core.Income{
		UserID:      userID,
		AccountID:   req.AccountID,
		Source:      req.Source,
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
		Notes:       req.Notes,
	}
	if err := income.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.storage.CreateIncome(r.Context(), income)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.storage.DeleteIncome(r.Context(), userID, id); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTrash(w http.ResponseWriter, r *http.Request, userID int64) {
	items, err := s.storage.ListTrash(r.Context(), userID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleRestoreTrash(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.storage.RestoreTrashItem(r.Context(), userID, id); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}
