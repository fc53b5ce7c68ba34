package tasksource

import (
	"context"
	"errors"
	"sync"

	"github.com/taskdeck-io/taskdeck/internal/bus"
	"github.com/taskdeck-io/taskdeck/internal/models"
)

// Event names published by the service.
const (
	EventTasksLoaded    = "tasks-loaded"
	EventProjectsLoaded = "projects-loaded"
	EventTaskCompleted  = "task-completed"
	EventTaskAdded      = "task-added"
	EventAPIError       = "api-error"
)

// TasksLoaded is the payload of tasks-loaded. CurrentTask is nil and
// CurrentTaskIndex is -1 when the list is empty.
type TasksLoaded struct {
	Tasks            []models.Task `json:"tasks"`
	TaskIDs          []string      `json:"task_ids"`
	CurrentTaskIndex int           `json:"current_task_index"`
	CurrentTask      *models.Task  `json:"current_task,omitempty"`
}

// ProjectsLoaded is the payload of projects-loaded.
type ProjectsLoaded struct {
	Projects []models.Project `json:"projects"`
}

// TaskCompleted is the payload of task-completed.
type TaskCompleted struct {
	TaskID string `json:"task_id"`
}

// TaskAdded is the payload of task-added.
type TaskAdded struct {
	Content   string `json:"content"`
	ProjectID string `json:"project_id,omitempty"`
}

// Service owns the in-memory task list and cursor for the remote tracker.
// List and cursor mutate together: the cursor is a valid index while the
// list is non-empty and -1 when it is empty. The service never touches
// presentation; it only publishes events.
type Service struct {
	mu       sync.Mutex
	api      API
	bus      *bus.Bus
	tasks    []models.Task
	projects []models.Project
	index    int
	project  string // selected project filter, empty = all
}

// NewService creates a service backed by the given tracker API.
func NewService(api API, b *bus.Bus) *Service {
	return &Service{api: api, bus: b, index: -1}
}

// SetAPI swaps the tracker backend. Used when the token or base URL changes
// in settings; the task list is kept until the next fetch.
func (s *Service) SetAPI(api API) {
	s.mu.Lock()
	s.api = api
	s.mu.Unlock()
}

// SelectedProject returns the current project filter, empty for all.
func (s *Service) SelectedProject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// SelectProject sets the project filter and refetches tasks. An empty id
// clears the filter.
func (s *Service) SelectProject(ctx context.Context, id string) error {
	s.mu.Lock()
	s.project = id
	s.mu.Unlock()
	return s.FetchTasks(ctx)
}

// FetchTasks reloads the task list for the selected project and resets the
// cursor to the first task. On failure the previous list is retained and an
// api-error event is published.
func (s *Service) FetchTasks(ctx context.Context) error {
	s.mu.Lock()
	api := s.api
	project := s.project
	s.mu.Unlock()

	tasks, err := api.FetchTasks(ctx, project)
	if err != nil {
		s.publishError(err)
		return err
	}

	s.mu.Lock()
	s.tasks = tasks
	if len(tasks) > 0 {
		s.index = 0
	} else {
		s.index = -1
	}
	payload := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(EventTasksLoaded, payload)
	return nil
}

// FetchProjects refreshes the project mirror wholesale. On failure the
// previous mirror is retained and an api-error event is published.
func (s *Service) FetchProjects(ctx context.Context) error {
	s.mu.Lock()
	api := s.api
	s.mu.Unlock()

	projects, err := api.FetchProjects(ctx)
	if err != nil {
		s.publishError(err)
		return err
	}

	s.mu.Lock()
	s.projects = projects
	s.mu.Unlock()

	s.bus.Publish(EventProjectsLoaded, ProjectsLoaded{Projects: projects})
	return nil
}

// NextTask advances the cursor cyclically and returns the new current task,
// or nil when the list is empty. Cursor moves are announced as a fresh
// tasks-loaded event so themes repaint.
func (s *Service) NextTask() *models.Task {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.index = (s.index + 1) % len(s.tasks)
	current := s.tasks[s.index]
	payload := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(EventTasksLoaded, payload)
	return &current
}

// CompleteTask closes the task on the tracker and removes it from the list,
// clamping the cursor. Publishes task-completed followed by tasks-loaded.
func (s *Service) CompleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	api := s.api
	s.mu.Unlock()

	if err := api.CloseTask(ctx, id); err != nil {
		s.publishError(err)
		return err
	}

	s.mu.Lock()
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	if len(s.tasks) == 0 {
		s.index = -1
	} else if s.index >= len(s.tasks) {
		s.index = 0
	}
	payload := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(EventTaskCompleted, TaskCompleted{TaskID: id})
	s.bus.Publish(EventTasksLoaded, payload)
	return nil
}

// AddTask creates a task on the tracker. When the new task matches the
// selected project filter it is appended to the list. Publishes task-added
// followed by tasks-loaded.
func (s *Service) AddTask(ctx context.Context, content, projectID string) error {
	if content == "" {
		return errors.New("task content is empty")
	}

	s.mu.Lock()
	api := s.api
	s.mu.Unlock()

	task, err := api.AddTask(ctx, content, projectID)
	if err != nil {
		s.publishError(err)
		return err
	}

	s.mu.Lock()
	if projectID == "" || s.project == "" || projectID == s.project {
		s.tasks = append(s.tasks, task)
		if s.index < 0 {
			s.index = 0
		}
	}
	payload := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(EventTaskAdded, TaskAdded{Content: content, ProjectID: projectID})
	s.bus.Publish(EventTasksLoaded, payload)
	return nil
}

// CurrentTask returns a copy of the task under the cursor, or nil when the
// list is empty. Themes pull this once on activation and then rely on
// forwarded events.
func (s *Service) CurrentTask() *models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index < 0 {
		return nil
	}
	current := s.tasks[s.index]
	return &current
}

// CurrentIndex returns the cursor position, -1 when the list is empty.
func (s *Service) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// SetCurrentIndex moves the cursor to idx if it is valid for the current
// list, publishing a fresh tasks-loaded event. Used to restore a remembered
// position on phase switches.
func (s *Service) SetCurrentIndex(idx int) {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.tasks) {
		s.mu.Unlock()
		return
	}
	s.index = idx
	payload := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(EventTasksLoaded, payload)
}

// Snapshot returns the current tasks-loaded payload without publishing.
func (s *Service) Snapshot() TasksLoaded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Projects returns the current project mirror.
func (s *Service) Projects() []models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Project, len(s.projects))
	copy(out, s.projects)
	return out
}

func (s *Service) snapshotLocked() TasksLoaded {
	tasks := make([]models.Task, len(s.tasks))
	copy(tasks, s.tasks)

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}

	payload := TasksLoaded{Tasks: tasks, TaskIDs: ids, CurrentTaskIndex: s.index}
	if s.index >= 0 {
		current := tasks[s.index]
		payload.CurrentTask = &current
	}
	return payload
}

func (s *Service) publishError(err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = &APIError{Message: err.Error(), Code: "internal"}
	}
	s.bus.Publish(EventAPIError, *apiErr)
}
