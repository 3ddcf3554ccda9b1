// Package client is the Go client for the TaskPilot API: a typed HTTP
// wrapper for every REST operation plus a local time tracker that mirrors
// the dashboard's ticking clock.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Task mirrors the wire shape of a task record.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	TotalTime   int64      `json:"total_time"`
	IsTracking  bool       `json:"is_tracking"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// User mirrors the sanitized account view.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTask carries the fields for POST /api/tasks.
type CreateTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateTask is a partial PATCH body; nil fields are omitted.
type UpdateTask struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	TotalTime   *int64     `json:"total_time,omitempty"`
	IsTracking  *bool      `json:"is_tracking,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Summary mirrors GET /api/analytics/summary.
type Summary struct {
	TimeToday          int64   `json:"time_today"`
	TimeThisWeek       int64   `json:"time_this_week"`
	CompletedToday     int     `json:"completed_today"`
	CompletedThisWeek  int     `json:"completed_this_week"`
	TotalTasks         int     `json:"total_tasks"`
	TotalCompleted     int     `json:"total_completed"`
	AverageTimePerTask float64 `json:"average_time_per_task"`
}

// CategoryStat mirrors GET /api/analytics/categories entries.
type CategoryStat struct {
	Category    string `json:"category"`
	Time        int64  `json:"time"`
	TimeMinutes int64  `json:"time_minutes"`
}

// DailyStat mirrors GET /api/analytics/daily entries.
type DailyStat struct {
	Date        string `json:"date"`
	Completed   int    `json:"completed"`
	TimeMinutes int64  `json:"time_minutes"`
}

// APIError is the decoded server error envelope.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to a TaskPilot API server. It is safe for concurrent use
// once the token is set.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken installs the bearer token attached to authenticated calls.
func (c *Client) SetToken(token string) { c.token = token }

type authPayload struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Register creates an account and installs the returned token.
func (c *Client) Register(ctx context.Context, email, username, password string) (*User, error) {
	body := map[string]string{"email": email, "username": username, "password": password}
	var out authPayload
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out.User, nil
}

// Login authenticates and installs the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	body := map[string]string{"email": email, "password": password}
	var out authPayload
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out.User, nil
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var out struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, in CreateTask) (*Task, error) {
	var out struct {
		Task Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/tasks", in, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var out struct {
		Task Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, in UpdateTask) (*Task, error) {
	var out struct {
		Task Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+id, in, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil, nil)
}

func (c *Client) StartTimer(ctx context.Context, id string) (*Task, error) {
	var out struct {
		Task Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+id+"/start", nil, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

func (c *Client) StopTimer(ctx context.Context, id string) (*Task, error) {
	var out struct {
		Task Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+id+"/stop", nil, &out); err != nil {
		return nil, err
	}
	return &out.Task, nil
}

// SyncTotalTime pushes the locally ticked total for one task.
func (c *Client) SyncTotalTime(ctx context.Context, id string, totalTime int64) error {
	return c.do(ctx, http.MethodPatch, "/api/tasks/"+id, map[string]int64{"total_time": totalTime}, nil)
}

func (c *Client) AnalyticsSummary(ctx context.Context) (*Summary, error) {
	var out struct {
		Summary Summary `json:"summary"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/analytics/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out.Summary, nil
}

func (c *Client) AnalyticsCategories(ctx context.Context) ([]CategoryStat, error) {
	var out struct {
		Categories []CategoryStat `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/analytics/categories", nil, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

func (c *Client) AnalyticsDaily(ctx context.Context) ([]DailyStat, error) {
	var out struct {
		Daily []DailyStat `json:"daily"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/analytics/daily", nil, &out); err != nil {
		return nil, err
	}
	return out.Daily, nil
}

// do runs one request; dataOut, when non-nil, receives the envelope's
// `data` field.
func (c *Client) do(ctx context.Context, method, path string, body any, dataOut any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if dataOut == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(envelope.Data, dataOut)
}
