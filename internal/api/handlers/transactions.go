package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/harborbank/demo/internal/api/middleware"
	"github.com/harborbank/demo/internal/domain"
)

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	registry *Registry
	log      zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(registry *Registry, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{registry: registry, log: log}
}

// List handles GET /api/transactions
//
// The response comes from the session's in-memory view, not the store: the
// view is already seeded, optimistically updated and feed-synchronized.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ss, ok := h.sync(w, r)
	if !ok {
		return
	}

	var filter func(domain.Transaction) bool
	if typ := r.URL.Query().Get("type"); typ != "" {
		want := domain.TransactionType(typ)
		filter = func(tx domain.Transaction) bool { return tx.Type == want }
	}

	txs := ss.Syncer.Transactions(filter)
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// Create handles POST /api/transactions
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ss, ok := h.sync(w, r)
	if !ok {
		return
	}

	var input domain.NewTransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if input.Status == "" {
		// The demo UI books transactions as completed immediately; the
		// caller decides, there is no server-side workflow.
		input.Status = domain.StatusCompleted
	}

	tx, err := ss.Syncer.Submit(r.Context(), input)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", ss.Session.UserID).Msg("Transaction submit failed")
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Transaction could not be saved")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// sync resolves the request's session to its sync state.
func (h *TransactionsHandler) sync(w http.ResponseWriter, r *http.Request) (*SessionSync, bool) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "No session")
		return nil, false
	}
	ss, ok := h.registry.ForSession(sess.ID)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Session sync not active")
		return nil, false
	}
	return ss, true
}
