package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/harborbank/demo/internal/api/middleware"
	"github.com/harborbank/demo/internal/export"
)

// StatementsHandler exports the session's transaction view as a CSV
// statement to the configured GCS bucket.
type StatementsHandler struct {
	registry *Registry
	bucket   string
	log      zerolog.Logger
}

// NewStatementsHandler creates a new statements handler. An empty bucket
// disables exports.
func NewStatementsHandler(registry *Registry, bucket string, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{registry: registry, bucket: bucket, log: log}
}

// Export handles POST /api/statements/export
func (h *StatementsHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.bucket == "" {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Statement export is not configured")
		return
	}

	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "No session")
		return
	}
	ss, ok := h.registry.ForSession(sess.ID)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Session sync not active")
		return
	}

	data, err := export.RenderCSV(ss.Syncer.Transactions(nil))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to render statement")
		return
	}

	objectName := export.ObjectName(sess.UserID, time.Now().UTC())
	uri, err := export.Upload(r.Context(), h.bucket, objectName, data)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upload statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload statement")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"uri": uri})
}
