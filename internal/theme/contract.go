// Package theme implements the theme registry and coordinator: a registry of
// interchangeable presentation modules, at most one of which is active, with
// domain events forwarded from the bus to the active theme's handlers.
package theme

import (
	"context"
	"sync"

	"github.com/taskdeck-io/taskdeck/internal/config"
	"github.com/taskdeck-io/taskdeck/internal/models"
	"github.com/taskdeck-io/taskdeck/internal/pomodoro"
	"github.com/taskdeck-io/taskdeck/internal/tasksource"
)

// Theme is the contract every presentation module must satisfy. Lifecycle
// methods may block on asynchronous setup; the coordinator always waits for
// completion before the next lifecycle step.
type Theme interface {
	// Initialize performs one-time setup. It must be safe to call more
	// than once, performing setup only on the first call.
	Initialize(ctx context.Context) error

	// Activate makes the theme the visible renderer. The coordinator does
	// not replay event history; the theme pulls current task and timer
	// snapshots itself and then relies on forwarded events.
	Activate(ctx context.Context) error

	// Deactivate releases everything the theme acquired while active,
	// including any periodic loops it started. It must leave the shared
	// display surface as it found it.
	Deactivate(ctx context.Context) error

	// UpdateSettings merges new settings into the theme's live settings,
	// optionally refreshing its rendering to reflect them.
	UpdateSettings(settings map[string]any) error
}

// Optional per-event handlers. The coordinator checks for these at dispatch
// through the fixed event table in events.go; a theme implements exactly the
// ones it cares about.
type (
	// TasksLoadedHandler handles tasks-loaded.
	TasksLoadedHandler interface {
		OnTasksLoaded(e tasksource.TasksLoaded)
	}
	// ProjectsLoadedHandler handles projects-loaded.
	ProjectsLoadedHandler interface {
		OnProjectsLoaded(e tasksource.ProjectsLoaded)
	}
	// TaskCompletedHandler handles task-completed.
	TaskCompletedHandler interface {
		OnTaskCompleted(e tasksource.TaskCompleted)
	}
	// TaskAddedHandler handles task-added.
	TaskAddedHandler interface {
		OnTaskAdded(e tasksource.TaskAdded)
	}
	// APIErrorHandler handles api-error.
	APIErrorHandler interface {
		OnAPIError(e tasksource.APIError)
	}
	// TimerStartedHandler handles timer-started.
	TimerStartedHandler interface {
		OnTimerStarted(state models.TimerState)
	}
	// TimerPausedHandler handles timer-paused.
	TimerPausedHandler interface {
		OnTimerPaused(state models.TimerState)
	}
	// TimerResetHandler handles timer-reset.
	TimerResetHandler interface {
		OnTimerReset(state models.TimerState)
	}
	// PomodoroTickHandler handles timer-tick.
	PomodoroTickHandler interface {
		OnPomodoroTick(state models.TimerState)
	}
	// TimerCompletedHandler handles timer-completed.
	TimerCompletedHandler interface {
		OnTimerCompleted(e pomodoro.Completed)
	}
	// WorkStartedHandler handles work-started.
	WorkStartedHandler interface {
		OnWorkStarted(state models.TimerState)
	}
	// BreakStartedHandler handles break-started.
	BreakStartedHandler interface {
		OnBreakStarted(state models.TimerState)
	}
	// SettingsChangedHandler handles settings-changed.
	SettingsChangedHandler interface {
		OnSettingsChanged(e config.SettingsChanged)
	}
)

// Fallback receives events the theme has no specific handler for. Without
// it, unhandled events are silently dropped for that theme.
type Fallback interface {
	OnEvent(name string, payload any)
}

// RendererEvent is a display-surface-originated event addressed to a theme.
type RendererEvent struct {
	ThemeName string         `json:"theme_name"`
	EventName string         `json:"event_name"`
	Data      map[string]any `json:"data,omitempty"`
}

// RendererEventHandler receives renderer-originated events. The coordinator
// only forwards events whose ThemeName matches the active theme.
type RendererEventHandler interface {
	OnRendererEvent(e RendererEvent)
}

// Descriptor describes a registered theme. Registration is rejected unless
// Name, DisplayName, and Impl are all present.
type Descriptor struct {
	Name            string
	DisplayName     string
	Description     string
	DefaultSettings map[string]any
	Impl            Theme
}

// ThemeInfo is what the presentation surface is told about a theme change.
type ThemeInfo struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name"`
	Description string         `json:"description,omitempty"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// Frame is a full repaint request from a theme.
type Frame struct {
	Theme string   `json:"theme"`
	Title string   `json:"title,omitempty"`
	Lines []string `json:"lines"`
}

// Surface is the presentation bridge as seen by the coordinator and themes.
// ThemeChanged is always delivered before the new theme's first frame, so
// the display surface discards the previous theme's content first.
type Surface interface {
	ThemeChanged(info ThemeInfo)
	ThemeSettingsUpdated(name string, settings map[string]any)
	ShowFrame(frame Frame)
	Notify(title, body string)
	ForwardEvent(name string, payload any)
}

// Base is a no-op Theme for embedding. It tracks one-shot initialization and
// holds the live settings map under a lock.
type Base struct {
	mu          sync.Mutex
	settings    map[string]any
	initialized bool
}

// Initialize is a no-op.
func (b *Base) Initialize(ctx context.Context) error { return nil }

// FirstInit returns true exactly once, on the first call. Embedding themes
// use it to keep Initialize idempotent.
func (b *Base) FirstInit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return false
	}
	b.initialized = true
	return true
}

// Activate is a no-op.
func (b *Base) Activate(ctx context.Context) error { return nil }

// Deactivate is a no-op.
func (b *Base) Deactivate(ctx context.Context) error { return nil }

// UpdateSettings merges settings into the live settings map.
func (b *Base) UpdateSettings(settings map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.settings == nil {
		b.settings = make(map[string]any, len(settings))
	}
	for k, v := range settings {
		b.settings[k] = v
	}
	return nil
}

// Setting returns a live setting value.
func (b *Base) Setting(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.settings[key]
	return v, ok
}

// IntValue coerces a decoded settings or event value to an int. Values that
// crossed the bridge were decoded from JSON and arrive as float64; values
// from the YAML settings file arrive as int.
func IntValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
