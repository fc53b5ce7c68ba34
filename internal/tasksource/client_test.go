package tasksource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func trackerStub(t *testing.T, wantToken string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+wantToken {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("project_id") == "p2" {
			w.Write([]byte(`[{"id":"t3","content":"ship it"}]`))
			return
		}
		w.Write([]byte(`[{"id":"t1","content":"write tests"},{"id":"t2","content":"review"}]`))
	})
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id": "t9", "content": body["content"],
		})
	})
	mux.HandleFunc("POST /tasks/{id}/close", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "t1" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetchTasks(t *testing.T) {
	srv := trackerStub(t, "secret")
	c := NewClient(srv.URL, "secret")

	tasks, err := c.FetchTasks(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchTasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "t1" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}

	tasks, err = c.FetchTasks(context.Background(), "p2")
	if err != nil {
		t.Fatalf("FetchTasks filtered: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t3" {
		t.Fatalf("project filter not applied: %+v", tasks)
	}
}

func TestClientBadToken(t *testing.T) {
	srv := trackerStub(t, "secret")
	c := NewClient(srv.URL, "wrong")

	_, err := c.FetchTasks(context.Background(), "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Code != "http" {
		t.Fatalf("unexpected error detail: %+v", apiErr)
	}
}

func TestClientAddAndClose(t *testing.T) {
	srv := trackerStub(t, "secret")
	c := NewClient(srv.URL, "secret")

	task, err := c.AddTask(context.Background(), "new thing", "p2")
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if task.ID != "t9" || task.Content != "new thing" {
		t.Fatalf("unexpected task: %+v", task)
	}

	if err := c.CloseTask(context.Background(), "t1"); err != nil {
		t.Fatalf("CloseTask: %v", err)
	}
	var apiErr *APIError
	if err := c.CloseTask(context.Background(), "missing"); !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError for missing task, got %v", err)
	}
}

func TestClientNetworkError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "secret")
	_, err := c.FetchTasks(context.Background(), "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "network" {
		t.Fatalf("unexpected code %q", apiErr.Code)
	}
}
