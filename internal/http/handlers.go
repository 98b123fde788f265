package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ricorrenze/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

type ingestResponse struct {
	UserID    string                  `json:"user_id"`
	Ingested  int                     `json:"ingested"`
	Merchants int                     `json:"merchants"`
	Active    []core.ActiveRecurrence `json:"active"`
}

type recurringResponse struct {
	UserID string                  `json:"user_id"`
	AsOf   core.Date               `json:"as_of"`
	Active []core.ActiveRecurrence `json:"active"`
}

// handleTransactions dispatches POST (batch ingest) and GET (full listing)
// on /api/transactions.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleIngest(w, r)
	case http.MethodGet:
		s.handleListTransactions(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleIngest accepts a JSON array of one user's transactions, folds them
// into the user's recurrence state, and answers with the active list as of
// today.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var batch []core.Transaction
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	state, err := s.service.Ingest(r.Context(), batch)
	if err != nil {
		s.writeIngestError(w, r, err)
		return
	}

	// The fold changed the user's state, so any cached list is stale.
	s.activeCache.Delete(state.UserID)

	today := s.now()
	active, err := s.service.ListActive(r.Context(), state.UserID, today)
	if err != nil {
		slog.ErrorContext(r.Context(), "List active after ingest failed",
			"user_id", state.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.activeCache.Set(state.UserID, active)

	writeJSON(w, http.StatusOK, ingestResponse{
		UserID:    state.UserID,
		Ingested:  len(batch),
		Merchants: len(state.Buckets),
		Active:    active,
	})
}

func (s *Server) writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrEmptyBatch), errors.Is(err, core.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrDuplicateTransaction), errors.Is(err, core.ErrStateConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Ingest failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleListRecurring answers GET /api/recurring/{user_id} with the user's
// active recurring transactions. An optional ?date=YYYY-MM-DD query pins the
// reference day; the default is today.
func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("user_id"))
	if userID == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing user_id")
		return
	}

	today := s.now()
	asOf := strings.TrimSpace(r.URL.Query().Get("date"))
	if asOf != "" {
		parsed, err := core.ParseDate(asOf)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid date: "+asOf)
			return
		}
		today = parsed
	}

	// Only today's list is cached; explicit dates bypass the cache.
	cacheable := asOf == ""
	if cacheable {
		if active, found := s.activeCache.Get(userID); found {
			writeJSON(w, http.StatusOK, recurringResponse{UserID: userID, AsOf: today, Active: active})
			return
		}
	}

	active, err := s.service.ListActive(r.Context(), userID, today)
	if err != nil {
		slog.ErrorContext(r.Context(), "List active failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if cacheable {
		s.activeCache.Set(userID, active)
	}

	writeJSON(w, http.StatusOK, recurringResponse{UserID: userID, AsOf: today, Active: active})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.service.ListTransactions(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List transactions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
