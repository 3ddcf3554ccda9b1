package analytics

import (
	"encoding/json"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/taskpilot/service-api-go/internal/auth"
)

// Handler exposes the read-only analytics endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(db *sqlx.DB, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: NewService(db, nil, nil), logger: logger}
}

// NewHandlerWithService wires a prebuilt service, used by tests.
func NewHandlerWithService(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	summary, err := h.svc.Summary(r.Context(), id.UserID)
	if err != nil {
		h.logger.Warnw("analytics summary failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "analytics summary failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"summary": summary},
	})
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	stats, err := h.svc.CategoryDistribution(r.Context(), id.UserID)
	if err != nil {
		h.logger.Warnw("category distribution failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "category distribution failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"categories": stats},
	})
}

func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	stats, err := h.svc.DailyProgress(r.Context(), id.UserID)
	if err != nil {
		h.logger.Warnw("daily progress failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "daily progress failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"daily": stats},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]any{"status": status, "message": msg})
}
