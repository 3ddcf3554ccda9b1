package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskpilot/service-api-go/internal/auth"
)

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	svc, mock := newTestService(t)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	return NewHandlerWithService(svc, tokens, zap.NewNop().Sugar()), mock
}

func TestRegisterEndpoint(t *testing.T) {
	t.Run("returns user and token", func(t *testing.T) {
		h, mock := newTestHandler(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
				AddRow(fixedTime(), fixedTime()))

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"email":"ann@example.com","username":"ann","password":"hunter22"}`))
		rec := httptest.NewRecorder()
		h.Register(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		data := body["data"].(map[string]any)
		assert.NotEmpty(t, data["token"])
		assert.Equal(t, "ann@example.com", data["user"].(map[string]any)["email"])
	})

	t.Run("duplicate email returns 409 envelope", func(t *testing.T) {
		h, mock := newTestHandler(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pq.Error{Code: "23505"})

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"email":"ann@example.com","username":"ann","password":"hunter22"}`))
		rec := httptest.NewRecorder()
		h.Register(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(http.StatusConflict), body["status"])
		assert.Equal(t, "user with this email already exists", body["message"])
	})

	t.Run("validation failures come back as one message", func(t *testing.T) {
		h, _ := newTestHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"email":"nope","username":"","password":"x"}`))
		rec := httptest.NewRecorder()
		h.Register(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		msg := body["message"].(string)
		assert.True(t, strings.HasPrefix(msg, "Validation Error: "))
		assert.Contains(t, msg, "email")
		assert.Contains(t, msg, "Username")
		assert.Contains(t, msg, "Password")
	})
}

func TestProfileEndpoint(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery(`SELECT .* FROM users WHERE id=\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at", "updated_at"}).
			AddRow("u1", "ann@example.com", "ann", "hash", fixedTime(), fixedTime()))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "u1"}))
	rec := httptest.NewRecorder()
	h.Profile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	u := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "u1", u["id"])
	// never leak the hash
	_, leaked := u["password_hash"]
	assert.False(t, leaked)
}
