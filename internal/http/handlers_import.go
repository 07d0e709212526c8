package http

import (
	"net/http"

	"kosh/internal/core"
	"kosh/internal/statement"
)

type importPreviewRequest struct {
	Path   string `json:"path"`
	Preset string `json:"preset,omitempty"`
}

// handleImportPreview parses a statement file on the server's filesystem
// and returns the enriched rows for review.
func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request, userID int64) {
	var req importPreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	preview, err := s.importer.BuildPreview(r.Context(), userID, req.Path, statement.Provider(req.Preset))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type importCommitRequest struct {
	Preview   statement.Preview `json:"preview"`
	AccountID *int64            `json:"account_id,omitempty"`
}

// handleImportCommit writes previously previewed rows into the ledger. The
// client sends the (possibly edited) preview back.
func (s *Server) handleImportCommit(w http.ResponseWriter, r *http.Request, userID int64) {
	var req importCommitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.importer.Commit(r.Context(), userID, &req.Preview, req.AccountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleImportSessions(w http.ResponseWriter, r *http.Request, userID int64) {
	sessions, err := s.storage.ListImportSessions(r.Context(), userID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, userID int64) {
	accounts, err := s.storage.ListManagedAccounts(r.Context(), userID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		AccountName string `json:"account_name"`
		AccountType string `json:"account_type,omitempty"`
		Email       string `json:"email,omitempty"`
		Phone       string `json:"phone,omitempty"`
		Notes       string `json:"notes,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountName == "" {
		writeError(w, http.StatusBadRequest, "account_name is required")
		return
	}

	id, err := s.storage.CreateManagedAccount(r.Context(), core.ManagedAccount{
		UserID:      userID,
		AccountName: req.AccountName,
		AccountType: req.AccountType,
		Email:       req.Email,
		Phone:       req.Phone,
		Notes:       req.Notes,
	})
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.storage.DeleteManagedAccount(r.Context(), userID, id); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type goalResponse struct {
	core.Goal
	Progress float64 `json:"progress"`
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request, userID int64) {
	goals, err := s.storage.ListGoals(r.Context(), userID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, goalResponse{Goal: g, Progress: g.Progress()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		Title         string  `json:"title"`
		TargetAmount  float64 `json:"target_amount"`
		CurrentAmount float64 `json:"current_amount,omitempty"`
		DueDate       string  `json:"due_date,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.TargetAmount <= 0 {
		writeError(w, http.StatusBadRequest, core.ErrInvalidAmount.Error())
		return
	}

	goal := core.Goal{
		UserID:        userID,
		Title:         req.Title,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
	}
	if req.DueDate != "" {
		due, err := core.ParseDate(req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, core.ErrInvalidDate.Error())
			return
		}
		goal.DueDate = due
	}

	id, err := s.storage.CreateGoal(r.Context(), goal)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		CurrentAmount float64 `json:"current_amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.storage.UpdateGoalProgress(r.Context(), userID, id, req.CurrentAmount); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"current_amount": req.CurrentAmount})
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.storage.DeleteGoal(r.Context(), userID, id); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, userID int64) {
	unreadOnly := r.URL.Query().Get("unread") == "1"
	alerts, err := s.storage.ListNotifications(r.Context(), userID, unreadOnly)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleGenerateAlerts(w http.ResponseWriter, r *http.Request, userID int64) {
	created, err := s.notifier.GenerateSystemAlerts(r.Context(), userID, core.Today())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.storage.MarkNotificationRead(r.Context(), userID, id); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.storage.DeleteNotification(r.Context(), userID, id); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
