package task

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/taskpilot/service-api-go/internal/auth"
	"github.com/taskpilot/service-api-go/internal/task/entity"
	"github.com/taskpilot/service-api-go/internal/validate"
	"github.com/taskpilot/service-api-go/pkg/utilities"
)

// Handler exposes the task CRUD and timer endpoints. Every route is owner
// scoped through the identity the auth middleware put in the context.
type Handler struct {
	svc    *TaskService
	logger *zap.SugaredLogger
}

func NewHandler(db *sqlx.DB, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: NewTaskService(db, nil), logger: logger}
}

// NewHandlerWithService wires a prebuilt service, used by tests.
func NewHandlerWithService(svc *TaskService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

// UpdateTaskRequest mirrors entity.TaskPatch on the wire; absent fields
// stay nil and are left untouched.
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	Category    *string    `json:"category"`
	Tags        *[]string  `json:"tags"`
	TotalTime   *int64     `json:"total_time"`
	IsTracking  *bool      `json:"is_tracking"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (req UpdateTaskRequest) patch() entity.TaskPatch {
	p := entity.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		TotalTime:   req.TotalTime,
		IsTracking:  req.IsTracking,
		CompletedAt: req.CompletedAt,
	}
	if req.Status != nil {
		st := entity.Status(*req.Status)
		p.Status = &st
	}
	if req.Priority != nil {
		pr := entity.Priority(*req.Priority)
		p.Priority = &pr
	}
	return p
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	tasks, err := h.svc.List(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, err, "task list failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(tasks),
		"data":    map[string]any{"tasks": tasks},
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	t, err := h.svc.Create(r.Context(), id.UserID, CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Category:    req.Category,
		Tags:        req.Tags,
	})
	if err != nil {
		h.fail(w, err, "task create failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "Task created successfully",
		"data":    map[string]any{"task": t},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	t, err := h.svc.Get(r.Context(), r.PathValue("id"), id.UserID)
	if err != nil {
		h.fail(w, err, "task fetch failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"task": t},
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	t, err := h.svc.Update(r.Context(), r.PathValue("id"), id.UserID, req.patch())
	if err != nil {
		h.fail(w, err, "task update failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Task updated successfully",
		"data":    map[string]any{"task": t},
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), id.UserID); err != nil {
		h.fail(w, err, "task delete failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Task deleted successfully",
		"data":    nil,
	})
}

func (h *Handler) StartTimer(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	t, err := h.svc.StartTimer(r.Context(), r.PathValue("id"), id.UserID)
	if err != nil {
		h.fail(w, err, "timer start failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Timer started",
		"data":    map[string]any{"task": t},
	})
}

func (h *Handler) StopTimer(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	t, err := h.svc.StopTimer(r.Context(), r.PathValue("id"), id.UserID)
	if err != nil {
		h.fail(w, err, "timer stop failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Timer stopped",
		"data":    map[string]any{"task": t},
	})
}

// ExportCSV streams the caller's tasks as a CSV download.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.")
		return
	}
	tasks, err := h.svc.List(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, err, "task export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Title", "Description", "Category", "Priority", "Status", "Time Spent", "Tags", "Created At"})
	for _, t := range tasks {
		_ = cw.Write([]string{
			t.Title,
			t.Description,
			t.Category,
			string(t.Priority),
			string(t.Status),
			utilities.FormatSeconds(t.TotalTime),
			strings.Join(t.Tags, ", "),
			t.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Warnw("csv flush failed", "err", err)
	}
}

// fail maps service errors onto the uniform error envelope.
func (h *Handler) fail(w http.ResponseWriter, err error, logMsg string) {
	var v *validate.Errors
	switch {
	case errors.As(err, &v):
		h.writeError(w, http.StatusBadRequest, v.Error())
	case errors.Is(err, ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Task not found")
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
