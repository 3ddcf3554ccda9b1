package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/taskpilot/service-api-go/internal/auth"
	"github.com/taskpilot/service-api-go/internal/validate"
)

// Handler exposes HTTP endpoints for registration, login and profile.
type Handler struct {
	svc    *UserService
	tokens *auth.TokenIssuer
	logger *zap.SugaredLogger
}

func NewHandler(db *sqlx.DB, tokens *auth.TokenIssuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: NewUserService(db, nil, nil), tokens: tokens, logger: logger}
}

// NewHandlerWithService wires a prebuilt service, used by tests.
func NewHandlerWithService(svc *UserService, tokens *auth.TokenIssuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	u, err := h.svc.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		h.fail(w, err, "registration failed")
		return
	}
	token, err := h.tokens.Issue(auth.Identity{UserID: u.ID, Email: u.Email, Username: u.Username})
	if err != nil {
		h.logger.Errorw("token issue failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "User registered successfully",
		"data":    map[string]any{"user": u.Profile(), "token": token},
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	u, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err, "login failed")
		return
	}
	token, err := h.tokens.Issue(auth.Identity{UserID: u.ID, Email: u.Email, Username: u.Username})
	if err != nil {
		h.logger.Errorw("token issue failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Login successful",
		"data":    map[string]any{"user": u.Profile(), "token": token},
	})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	p, err := h.svc.Profile(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, err, "profile fetch failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"user": p},
	})
}

// fail maps service errors onto the uniform error envelope.
func (h *Handler) fail(w http.ResponseWriter, err error, logMsg string) {
	var v *validate.Errors
	switch {
	case errors.As(err, &v):
		h.writeError(w, http.StatusBadRequest, v.Error())
	case errors.Is(err, ErrEmailTaken):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrBadCredentials):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Warnw(logMsg, "err", err)
		h.writeError(w, http.StatusInternalServerError, logMsg)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]any{"status": status, "message": msg})
}
