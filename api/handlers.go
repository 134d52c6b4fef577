/*
handlers.go - HTTP API handlers for the account processor

PURPOSE:
  Exposes the enrollment engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the account
  processor.

ENDPOINTS:
  Accounts:
    POST   /api/accounts                Register account with members
    GET    /api/accounts/{id}           Get account details
    GET    /api/accounts/{id}/timeline  Get enrollment timeline

  Transactions:
    POST   /api/transactions            Process an enrollment transaction

  Admin:
    POST   /api/admin/sweep             Trigger delinquency sweep

ERROR HANDLING:
  Errors are returned as JSON with the engine's error taxonomy mapped to
  HTTP status:
  - 400: Malformed transaction, missing household head, invalid input
  - 404: Account, span or premium span not found
  - 409: Ambiguous overlap (data inconsistency, operator intervention)
  - 422: Rejected by the validation strategy
  - 500: Storage or internal errors

SECURITY NOTE:
  No authentication middleware. The service runs behind the carrier's
  internal gateway which terminates auth.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - account/processor.go: The unit-of-work layer handlers delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zeus-health/account-processor/account"
	"github.com/zeus-health/account-processor/enrollment"
	"github.com/zeus-health/account-processor/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Processor *account.Processor
	Accounts  account.Store
	Timelines enrollment.TimelineStore
	Factory   *factory.TransactionFactory
	Log       *zap.Logger
}

// NewHandler creates a handler around a wired processor.
func NewHandler(p *account.Processor, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Processor: p,
		Accounts:  p.Accounts,
		Timelines: p.Timelines,
		Factory:   factory.NewTransactionFactory(),
		Log:       log,
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// CreateAccount registers an account and its members.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.AccountNumber == "" {
		writeError(w, http.StatusBadRequest, "id and account_number are required", nil)
		return
	}

	acct := &account.Account{
		ID:            enrollment.AccountID(req.ID),
		AccountNumber: req.AccountNumber,
		StateCode:     req.StateCode,
		Marketplace:   req.Marketplace,
		BusinessUnit:  req.BusinessUnit,
	}
	for _, m := range req.Members {
		acct.Members = append(acct.Members, account.Member{
			Code:             m.Code,
			FirstName:        m.FirstName,
			LastName:         m.LastName,
			Relationship:     m.Relationship,
			HouseholdHead:    m.HouseholdHead,
			ExchangeMemberID: m.ExchangeMemberID,
		})
	}

	if err := h.Accounts.SaveAccount(r.Context(), acct); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save account", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountDTO(acct))
}

// GetAccount returns a single account with its members.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := enrollment.AccountID(chi.URLParam(r, "id"))

	acct, err := h.Accounts.Account(r.Context(), id)
	if err != nil {
		if enrollment.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Account not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load account", err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountDTO(acct))
}

// GetTimeline returns the full enrollment timeline of an account.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	id := enrollment.AccountID(chi.URLParam(r, "id"))

	// Existence check: unknown accounts 404 rather than returning an
	// empty timeline.
	if _, err := h.Accounts.Account(r.Context(), id); err != nil {
		if enrollment.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Account not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load account", err)
		return
	}

	tl, err := h.Timelines.Timeline(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load timeline", err)
		return
	}

	writeJSON(w, http.StatusOK, toTimelineDTO(tl))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ProcessTransaction runs one enrollment transaction end to end.
func (h *Handler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	var tj factory.TransactionJSON
	if err := json.NewDecoder(r.Body).Decode(&tj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	txn, err := h.Factory.FromJSON(tj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
		return
	}

	muts, err := h.Processor.Process(r.Context(), txn)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResultDTO(txn, muts))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSweep runs the delinquency sweep across all accounts.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	changed, err := h.Processor.SweepDelinquency(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResultDTO{SpansChanged: changed})
}

// =============================================================================
// HELPERS
// =============================================================================

// writeEngineError maps the engine's error taxonomy to HTTP status.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case enrollment.IsConflict(err):
		writeError(w, http.StatusConflict, "Timeline state is inconsistent", err)
	case enrollment.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Referenced record not found", err)
	case enrollment.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
	case errors.Is(err, enrollment.ErrValidationRejected):
		writeError(w, http.StatusUnprocessableEntity, "Transaction rejected by validation", err)
	default:
		writeError(w, http.StatusInternalServerError, "Failed to process transaction", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
