package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harborbank/demo/internal/api/middleware"
	"github.com/harborbank/demo/internal/backend"
	"github.com/harborbank/demo/internal/domain"
)

// AdminHandler backs the admin panel. Status flips go straight to the
// table, which publishes the UPDATE event every affected session's
// subscriber picks up.
type AdminHandler struct {
	table      backend.TransactionTable
	adminEmail string
	log        zerolog.Logger
}

// NewAdminHandler creates a new admin handler. Only the session matching
// adminEmail may call it.
func NewAdminHandler(table backend.TransactionTable, adminEmail string, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{table: table, adminEmail: adminEmail, log: log}
}

// UpdateStatus handles POST /api/admin/transactions/{id}/status
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok || sess.Email != h.adminEmail {
		middleware.WriteError(w, http.StatusForbidden, "Admin access required")
		return
	}

	// Path shape: /api/admin/transactions/{id}/status
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/transactions/")
	id := strings.TrimSuffix(rest, "/status")
	if id == "" || id == rest {
		middleware.WriteError(w, http.StatusBadRequest, "Transaction id is required")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !domain.ValidStatus(domain.TransactionStatus(req.Status)) {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown status")
		return
	}

	if err := h.table.UpdateStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("Failed to update transaction status")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update status")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}
