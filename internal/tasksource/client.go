// Package tasksource owns the mirror of the remote task tracker: the REST
// client, the in-memory task list and cursor, and the task/project lifecycle
// events published on the bus.
package tasksource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck-io/taskdeck/internal/models"
)

// APITimeout is the timeout for tracker API calls.
const APITimeout = 10 * time.Second

// API is the remote tracker surface the service depends on. Tests substitute
// a fake; production uses Client.
type API interface {
	FetchTasks(ctx context.Context, projectID string) ([]models.Task, error)
	FetchProjects(ctx context.Context) ([]models.Project, error)
	AddTask(ctx context.Context, content, projectID string) (models.Task, error)
	CloseTask(ctx context.Context, id string) error
}

// APIError is a non-2xx or malformed response from the tracker. It is
// published as an api-error event, never propagated as a crash.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Status  int    `json:"status,omitempty"`
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("tracker API error (%s, HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("tracker API error (%s): %s", e.Code, e.Message)
}

// Client talks to a Todoist-compatible REST API with bearer-token auth.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a tracker client. token is sent as a bearer header on
// every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: APITimeout},
	}
}

// FetchTasks returns the open tasks, optionally filtered to one project.
func (c *Client) FetchTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	path := "/tasks"
	if projectID != "" {
		path += "?project_id=" + url.QueryEscape(projectID)
	}

	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// FetchProjects returns all projects.
func (c *Client) FetchProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// AddTask creates a task and returns the tracker's version of it.
func (c *Client) AddTask(ctx context.Context, content, projectID string) (models.Task, error) {
	body := map[string]string{"content": content}
	if projectID != "" {
		body["project_id"] = projectID
	}

	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", body, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// CloseTask marks the task completed on the tracker.
func (c *Client) CloseTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/close", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Message: err.Error(), Code: "network"}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			Message: string(bytes.TrimSpace(msg)),
			Code:    "http",
			Status:  resp.StatusCode,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Message: err.Error(), Code: "decode", Status: resp.StatusCode}
	}
	return nil
}
