package router

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskpilot/service-api-go/internal/auth"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (http.Handler, sqlmock.Sqlmock, string) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	token, err := tokens.Issue(auth.Identity{UserID: "u1", Email: "ann@example.com", Username: "ann"})
	require.NoError(t, err)

	handler := RegisterRoutes(zap.NewNop().Sugar(), sqlx.NewDb(db, "postgres"), tokens, "http://localhost:3000")
	return handler, mock, token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func fullTaskRow(id string, status string, totalTime int64, tracking bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "title", "description", "status", "priority", "category",
		"tags", "total_time", "is_tracking", "created_at", "updated_at", "completed_at",
	}).AddRow(id, "u1", "Write report", "", status, "medium", "general",
		[]byte("{}"), totalTime, tracking, testNow, testNow, nil)
}

func TestHealth(t *testing.T) {
	handler, _, _ := newTestServer(t)

	rec, body := doJSON(t, handler, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "Connected", body["database"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestAuthRequired(t *testing.T) {
	handler, _, _ := newTestServer(t)

	rec, body := doJSON(t, handler, http.MethodGet, "/api/tasks", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, body["message"], "Authentication required")
}

// TestTaskLifecycle walks the create → start → stop → delete scenario.
func TestTaskLifecycle(t *testing.T) {
	handler, mock, token := newTestServer(t)

	// create: defaults fill in status, priority, category
	mock.ExpectQuery(`INSERT INTO tasks`).
		WithArgs(sqlmock.AnyArg(), "u1", "Write report", "", "todo", "medium",
			"general", sqlmock.AnyArg(), int64(0), false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(testNow, testNow))

	rec, body := doJSON(t, handler, http.MethodPost, "/api/tasks", token, `{"title":"Write report"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := body["data"].(map[string]any)["task"].(map[string]any)
	assert.Equal(t, "todo", created["status"])
	assert.Equal(t, "medium", created["priority"])
	assert.Equal(t, "general", created["category"])
	assert.Equal(t, float64(0), created["total_time"])
	taskID := created["id"].(string)
	require.NotEmpty(t, taskID)

	// start: transactionally stop others then start this one
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tasks SET is_tracking=false`).
		WithArgs("u1", taskID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`UPDATE tasks SET is_tracking=true`).
		WithArgs(taskID, "u1", "in-progress").
		WillReturnRows(fullTaskRow(taskID, "in-progress", 0, true))
	mock.ExpectCommit()

	rec, body = doJSON(t, handler, http.MethodPost, "/api/tasks/"+taskID+"/start", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	started := body["data"].(map[string]any)["task"].(map[string]any)
	assert.Equal(t, true, started["is_tracking"])
	assert.Equal(t, "in-progress", started["status"])

	// stop: tracking cleared, accumulated seconds preserved
	mock.ExpectQuery(`UPDATE tasks SET`).
		WithArgs(false, taskID, "u1").
		WillReturnRows(fullTaskRow(taskID, "in-progress", 42, false))

	rec, body = doJSON(t, handler, http.MethodPost, "/api/tasks/"+taskID+"/stop", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	stopped := body["data"].(map[string]any)["task"].(map[string]any)
	assert.Equal(t, false, stopped["is_tracking"])
	assert.Equal(t, float64(42), stopped["total_time"])

	// delete, then a fetch comes back 404
	mock.ExpectExec(`DELETE FROM tasks`).
		WithArgs(taskID, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, _ = doJSON(t, handler, http.MethodDelete, "/api/tasks/"+taskID, token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id=\$1 AND user_id=\$2`).
		WithArgs(taskID, "u1").
		WillReturnError(sql.ErrNoRows)

	rec, body = doJSON(t, handler, http.MethodGet, "/api/tasks/"+taskID, token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found", body["message"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCORSPreflight(t *testing.T) {
	handler, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRootWelcome(t *testing.T) {
	handler, _, _ := newTestServer(t)

	rec, body := doJSON(t, handler, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to TaskPilot API", body["message"])
	endpoints := body["endpoints"].(map[string]any)
	assert.Equal(t, "/api/health", endpoints["health"])
}

func TestUnknownRouteGetsErrorEnvelope(t *testing.T) {
	handler, _, _ := newTestServer(t)

	rec, body := doJSON(t, handler, http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
	assert.Contains(t, body["message"], "/api/nope")
}

func TestAnalyticsSummaryRoute(t *testing.T) {
	handler, mock, token := newTestServer(t)

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE user_id=\$1`).
		WithArgs("u1").
		WillReturnRows(fullTaskRow("t1", "completed", 120, false))

	rec, body := doJSON(t, handler, http.MethodGet, "/api/analytics/summary", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := body["data"].(map[string]any)["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["total_tasks"])
	assert.Equal(t, float64(1), summary["total_completed"])
	assert.Equal(t, float64(120), summary["average_time_per_task"])
	require.NoError(t, mock.ExpectationsWereMet())
}
