package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/taskpilot/service-api-go/internal/analytics"
	"github.com/taskpilot/service-api-go/internal/auth"
	"github.com/taskpilot/service-api-go/internal/task"
	"github.com/taskpilot/service-api-go/internal/user"
	"github.com/taskpilot/service-api-go/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs each request at debug level with its correlation id.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
				"request_id", w.Header().Get("X-Request-Id"),
			)
		})
	}
}

// RequestIDMiddleware stamps every response with a snowflake correlation id.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Request-Id", utilities.NewRequestID())
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware allows the configured browser origin to call the API.
func CORSMiddleware(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts HTTP handlers using the standard library's
// http.ServeMux and wires the middleware chain.
func RegisterRoutes(logger *zap.SugaredLogger, db *sqlx.DB, tokens *auth.TokenIssuer, corsOrigin string) http.Handler {
	mux := http.NewServeMux()

	authed := auth.Middleware(tokens, logger)

	// catch-all: the bare root serves the welcome payload, everything the
	// mux does not know gets the JSON not-found envelope instead of the
	// stdlib plain-text page
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"message": "Welcome to TaskPilot API",
				"version": "1.0.0",
				"endpoints": map[string]string{
					"health": "/api/health",
					"auth":   "/api/auth",
					"tasks":  "/api/tasks",
				},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  http.StatusNotFound,
			"message": "Route not found: " + r.URL.Path,
		})
	})

	// health
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := map[string]any{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"database":  "Connected",
		}
		if err := db.PingContext(r.Context()); err != nil {
			logger.Warnw("health db ping failed", "err", err)
			body["status"] = "ERROR"
			body["database"] = "Disconnected"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(body)
	})

	// auth routes
	userHandler := user.NewHandler(db, tokens, logger)
	mux.HandleFunc("POST /api/auth/register", userHandler.Register)
	mux.HandleFunc("POST /api/auth/login", userHandler.Login)
	mux.Handle("GET /api/auth/profile", authed(http.HandlerFunc(userHandler.Profile)))

	// task routes
	taskHandler := task.NewHandler(db, logger)
	mux.Handle("GET /api/tasks", authed(http.HandlerFunc(taskHandler.List)))
	mux.Handle("POST /api/tasks", authed(http.HandlerFunc(taskHandler.Create)))
	mux.Handle("GET /api/tasks/export", authed(http.HandlerFunc(taskHandler.ExportCSV)))
	mux.Handle("GET /api/tasks/{id}", authed(http.HandlerFunc(taskHandler.Get)))
	mux.Handle("PATCH /api/tasks/{id}", authed(http.HandlerFunc(taskHandler.Update)))
	mux.Handle("DELETE /api/tasks/{id}", authed(http.HandlerFunc(taskHandler.Delete)))
	mux.Handle("POST /api/tasks/{id}/start", authed(http.HandlerFunc(taskHandler.StartTimer)))
	mux.Handle("POST /api/tasks/{id}/stop", authed(http.HandlerFunc(taskHandler.StopTimer)))

	// analytics routes
	analyticsHandler := analytics.NewHandler(db, logger)
	mux.Handle("GET /api/analytics/summary", authed(http.HandlerFunc(analyticsHandler.Summary)))
	mux.Handle("GET /api/analytics/categories", authed(http.HandlerFunc(analyticsHandler.Categories)))
	mux.Handle("GET /api/analytics/daily", authed(http.HandlerFunc(analyticsHandler.Daily)))

	// middleware chain, innermost first
	handler := SecurityHeadersMiddleware()(mux)
	handler = CORSMiddleware(corsOrigin)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = LoggingMiddleware(logger)(handler)
	return handler
}
