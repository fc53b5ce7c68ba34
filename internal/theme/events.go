package theme

import (
	"github.com/taskdeck-io/taskdeck/internal/config"
	"github.com/taskdeck-io/taskdeck/internal/models"
	"github.com/taskdeck-io/taskdeck/internal/pomodoro"
	"github.com/taskdeck-io/taskdeck/internal/tasksource"
)

// binding maps one domain event name to the typed handler slot on a theme.
// dispatch reports whether the theme implemented the specific handler; when
// it did not, the coordinator falls back to the theme's Fallback, if any.
type binding struct {
	name     string
	dispatch func(t Theme, payload any) bool
}

// eventTable is the closed set of forwarded domain events. Plugin authors
// implement the handler interfaces in contract.go; events outside this table
// are never forwarded to themes.
//
//	tasks-loaded     -> OnTasksLoaded
//	projects-loaded  -> OnProjectsLoaded
//	task-completed   -> OnTaskCompleted
//	task-added       -> OnTaskAdded
//	api-error        -> OnAPIError
//	timer-started    -> OnTimerStarted
//	timer-paused     -> OnTimerPaused
//	timer-reset      -> OnTimerReset
//	timer-tick       -> OnPomodoroTick
//	timer-completed  -> OnTimerCompleted
//	work-started     -> OnWorkStarted
//	break-started    -> OnBreakStarted
//	settings-changed -> OnSettingsChanged
var eventTable = []binding{
	{tasksource.EventTasksLoaded, func(t Theme, p any) bool {
		h, ok := t.(TasksLoadedHandler)
		e, okp := p.(tasksource.TasksLoaded)
		if ok && okp {
			h.OnTasksLoaded(e)
		}
		return ok && okp
	}},
	{tasksource.EventProjectsLoaded, func(t Theme, p any) bool {
		h, ok := t.(ProjectsLoadedHandler)
		e, okp := p.(tasksource.ProjectsLoaded)
		if ok && okp {
			h.OnProjectsLoaded(e)
		}
		return ok && okp
	}},
	{tasksource.EventTaskCompleted, func(t Theme, p any) bool {
		h, ok := t.(TaskCompletedHandler)
		e, okp := p.(tasksource.TaskCompleted)
		if ok && okp {
			h.OnTaskCompleted(e)
		}
		return ok && okp
	}},
	{tasksource.EventTaskAdded, func(t Theme, p any) bool {
		h, ok := t.(TaskAddedHandler)
		e, okp := p.(tasksource.TaskAdded)
		if ok && okp {
			h.OnTaskAdded(e)
		}
		return ok && okp
	}},
	{tasksource.EventAPIError, func(t Theme, p any) bool {
		h, ok := t.(APIErrorHandler)
		e, okp := p.(tasksource.APIError)
		if ok && okp {
			h.OnAPIError(e)
		}
		return ok && okp
	}},
	{pomodoro.EventTimerStarted, func(t Theme, p any) bool {
		h, ok := t.(TimerStartedHandler)
		e, okp := p.(models.TimerState)
		if ok && okp {
			h.OnTimerStarted(e)
		}
		return ok && okp
	}},
	{pomodoro.EventTimerPaused, func(t Theme, p any) bool {
		h, ok := t.(TimerPausedHandler)
		e, okp := p.(models.TimerState)
		if ok && okp {
			h.OnTimerPaused(e)
		}
		return ok && okp
	}},
	{pomodoro.EventTimerReset, func(t Theme, p any) bool {
		h, ok := t.(TimerResetHandler)
		e, okp := p.(models.TimerState)
		if ok && okp {
			h.OnTimerReset(e)
		}
		return ok && okp
	}},
	{pomodoro.EventTimerTick, func(t Theme, p any) bool {
		h, ok := t.(PomodoroTickHandler)
		e, okp := p.(models.TimerState)
		if ok && okp {
			h.OnPomodoroTick(e)
		}
		return ok && okp
	}},
	{pomodoro.EventTimerCompleted, func(t Theme, p any) bool {
		h, ok := t.(TimerCompletedHandler)
		e, okp := p.(pomodoro.Completed)
		if ok && okp {
			h.OnTimerCompleted(e)
		}
		return ok && okp
	}},
	{pomodoro.EventWorkStarted, func(t Theme, p any) bool {
		h, ok := t.(WorkStartedHandler)
		e, okp := p.(models.TimerState)
		if ok && okp {
			h.OnWorkStarted(e)
		}
		return ok && okp
	}},
	{pomodoro.EventBreakStarted, func(t Theme, p any) bool {
		h, ok := t.(BreakStartedHandler)
		e, okp := p.(models.TimerState)
		if ok && okp {
			h.OnBreakStarted(e)
		}
		return ok && okp
	}},
	{config.EventSettingsChanged, func(t Theme, p any) bool {
		h, ok := t.(SettingsChangedHandler)
		e, okp := p.(config.SettingsChanged)
		if ok && okp {
			h.OnSettingsChanged(e)
		}
		return ok && okp
	}},
}
