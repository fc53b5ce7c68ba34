// Package builtin holds the compiled-in theme implementations. The daemon
// registers these explicitly; manifest discovery can re-skin them by
// renderer name.
package builtin

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskdeck-io/taskdeck/internal/models"
	"github.com/taskdeck-io/taskdeck/internal/tasksource"
	"github.com/taskdeck-io/taskdeck/internal/theme"
)

// Renderer names referenced by theme manifests.
const (
	RendererMinimal = "minimal"
	RendererFarm    = "farm"
)

// TaskSnapshots provides the current task state for pull-on-activate.
type TaskSnapshots interface {
	Snapshot() tasksource.TasksLoaded
}

// TimerSnapshots provides the current timer state for pull-on-activate.
type TimerSnapshots interface {
	Snapshot() models.TimerState
}

// Deps is what every builtin theme needs from the daemon.
type Deps struct {
	Surface theme.Surface
	Tasks   TaskSnapshots
	Timer   TimerSnapshots
}

// Descriptors returns the builtin theme descriptors in default order.
func Descriptors(deps Deps) []theme.Descriptor {
	return []theme.Descriptor{
		{
			Name:            RendererMinimal,
			DisplayName:     "Minimal",
			Description:     "Plain text overlay with the current task and timer",
			DefaultSettings: map[string]any{"accent": "212", "show_timer": true},
			Impl:            NewMinimal(deps),
		},
		{
			Name:            RendererFarm,
			DisplayName:     "Farm",
			Description:     "Grow crops by finishing tasks and pomodoros",
			DefaultSettings: map[string]any{"plots": 6, "show_score": true},
			Impl:            NewFarm(deps),
		},
	}
}

// Factories returns fresh-instance constructors for manifest discovery.
func Factories(deps Deps) map[string]theme.Factory {
	return map[string]theme.Factory{
		RendererMinimal: func() theme.Theme { return NewMinimal(deps) },
		RendererFarm:    func() theme.Theme { return NewFarm(deps) },
	}
}

// Minimal is the plain text overlay theme: one line for the task, one for
// the timer, nothing else.
type Minimal struct {
	theme.Base
	deps Deps

	mu      sync.Mutex
	active  bool
	current *models.Task
	count   int
	timer   models.TimerState
	lastErr string

	taskStyle  lipgloss.Style
	dimStyle   lipgloss.Style
	errStyle   lipgloss.Style
	breakStyle lipgloss.Style
}

// NewMinimal creates the minimal theme.
func NewMinimal(deps Deps) *Minimal {
	return &Minimal{deps: deps}
}

// Initialize builds the style set once.
func (m *Minimal) Initialize(ctx context.Context) error {
	if !m.FirstInit() {
		return nil
	}
	accent := "212"
	if v, ok := m.Setting("accent"); ok {
		if s, ok := v.(string); ok {
			accent = s
		}
	}
	m.taskStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accent))
	m.dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	m.errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	m.breakStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	return nil
}

// Activate pulls the current snapshots and paints.
func (m *Minimal) Activate(ctx context.Context) error {
	snapshot := m.deps.Tasks.Snapshot()

	m.mu.Lock()
	m.active = true
	m.current = snapshot.CurrentTask
	m.count = len(snapshot.Tasks)
	m.timer = m.deps.Timer.Snapshot()
	m.mu.Unlock()

	m.render()
	return nil
}

// Deactivate stops painting. The theme holds no loops or listeners.
func (m *Minimal) Deactivate(ctx context.Context) error {
	m.mu.Lock()
	m.active = false
	m.lastErr = ""
	m.mu.Unlock()
	return nil
}

// OnTasksLoaded repaints with the new current task.
func (m *Minimal) OnTasksLoaded(e tasksource.TasksLoaded) {
	m.mu.Lock()
	m.current = e.CurrentTask
	m.count = len(e.Tasks)
	m.lastErr = ""
	m.mu.Unlock()
	m.render()
}

// OnPomodoroTick repaints the countdown.
func (m *Minimal) OnPomodoroTick(state models.TimerState) {
	m.setTimer(state)
}

// OnTimerStarted repaints.
func (m *Minimal) OnTimerStarted(state models.TimerState) { m.setTimer(state) }

// OnTimerPaused repaints.
func (m *Minimal) OnTimerPaused(state models.TimerState) { m.setTimer(state) }

// OnTimerReset repaints.
func (m *Minimal) OnTimerReset(state models.TimerState) { m.setTimer(state) }

// OnWorkStarted repaints and announces the phase.
func (m *Minimal) OnWorkStarted(state models.TimerState) {
	m.setTimer(state)
	m.deps.Surface.Notify("Back to work", "Break's over.")
}

// OnBreakStarted repaints and announces the phase.
func (m *Minimal) OnBreakStarted(state models.TimerState) {
	m.setTimer(state)
	m.deps.Surface.Notify("Break time", "Step away for a bit.")
}

// OnAPIError shows the error inline instead of a task.
func (m *Minimal) OnAPIError(e tasksource.APIError) {
	m.mu.Lock()
	m.lastErr = e.Message
	m.mu.Unlock()
	m.render()
}

func (m *Minimal) setTimer(state models.TimerState) {
	m.mu.Lock()
	m.timer = state
	m.mu.Unlock()
	m.render()
}

func (m *Minimal) render() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}

	var lines []string
	switch {
	case m.lastErr != "":
		lines = append(lines, m.errStyle.Render("! "+m.lastErr))
	case m.current != nil:
		lines = append(lines, m.taskStyle.Render(m.current.Content))
		lines = append(lines, m.dimStyle.Render(fmt.Sprintf("%d task(s) remaining", m.count)))
	default:
		lines = append(lines, m.dimStyle.Render("All clear, nothing to do"))
	}

	showTimer := true
	if v, ok := m.Setting("show_timer"); ok {
		if b, ok := v.(bool); ok {
			showTimer = b
		}
	}
	if showTimer {
		lines = append(lines, m.timerLine())
	}
	m.mu.Unlock()

	m.deps.Surface.ShowFrame(theme.Frame{Theme: RendererMinimal, Title: "taskdeck", Lines: lines})
}

// timerLine formats the countdown. Caller holds the lock.
func (m *Minimal) timerLine() string {
	minutes := m.timer.TimeRemainingSeconds / 60
	seconds := m.timer.TimeRemainingSeconds % 60

	label := "work"
	style := m.dimStyle
	if m.timer.IsBreak {
		label = "break"
		style = m.breakStyle
	}
	stateMark := "⏸"
	if m.timer.IsActive {
		stateMark = "▶"
	}
	return style.Render(fmt.Sprintf("%s %s %02d:%02d", stateMark, label, minutes, seconds))
}
