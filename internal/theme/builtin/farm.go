package builtin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskdeck-io/taskdeck/internal/models"
	"github.com/taskdeck-io/taskdeck/internal/pomodoro"
	"github.com/taskdeck-io/taskdeck/internal/tasksource"
	"github.com/taskdeck-io/taskdeck/internal/theme"
)

// Frame cadence of the farm's own update loop. The loop is elapsed-time
// based; a slow frame advances growth by the real interval, not a fixed
// step.
const farmFrameInterval = 500 * time.Millisecond

// Growth stages, youngest to ripe.
var cropStages = []string{".", ",", "i", "Y", "O"}

// How long a crop takes to advance one stage.
const stageDuration = 30 * time.Second

const (
	scorePerTask     = 10
	scorePerPomodoro = 25
	scorePerLevel    = 100
)

// Farm is the game-metaphor theme: every open task is a planted crop that
// grows in real time; completing tasks harvests crops into the inventory,
// and finished pomodoros water the whole field. Score, level, and inventory
// are the farm's own state, layered on top of the same domain events.
type Farm struct {
	theme.Base
	deps Deps

	mu        sync.Mutex
	active    bool
	crops     []crop
	current   *models.Task
	timer     models.TimerState
	score     int
	harvested int
	watered   bool

	stop chan struct{}
	loop sync.WaitGroup

	soilStyle  lipgloss.Style
	cropStyle  lipgloss.Style
	ripeStyle  lipgloss.Style
	scoreStyle lipgloss.Style
	taskStyle  lipgloss.Style
}

type crop struct {
	taskID string
	growth time.Duration
}

// NewFarm creates the farm theme.
func NewFarm(deps Deps) *Farm {
	return &Farm{deps: deps}
}

// Initialize builds the style set once.
func (f *Farm) Initialize(ctx context.Context) error {
	if !f.FirstInit() {
		return nil
	}
	f.soilStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("94"))
	f.cropStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	f.ripeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	f.scoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	f.taskStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	return nil
}

// Activate pulls snapshots, plants the field, and starts the frame loop.
func (f *Farm) Activate(ctx context.Context) error {
	snapshot := f.deps.Tasks.Snapshot()

	f.mu.Lock()
	f.active = true
	f.current = snapshot.CurrentTask
	f.timer = f.deps.Timer.Snapshot()
	f.plantLocked(snapshot)
	if f.stop == nil {
		f.stop = make(chan struct{})
		f.loop.Add(1)
		go f.runLoop(f.stop)
	}
	f.mu.Unlock()

	f.render()
	return nil
}

// Deactivate cancels the frame loop and waits for it to exit, so a later
// reactivation never runs two loops.
func (f *Farm) Deactivate(ctx context.Context) error {
	f.mu.Lock()
	f.active = false
	stop := f.stop
	f.stop = nil
	f.mu.Unlock()

	if stop != nil {
		close(stop)
		f.loop.Wait()
	}
	return nil
}

// runLoop advances growth by measured elapsed time until stopped.
func (f *Farm) runLoop(stop chan struct{}) {
	defer f.loop.Done()

	ticker := time.NewTicker(farmFrameInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			f.advance(now.Sub(last))
			last = now
		}
	}
}

// advance grows every crop by the elapsed interval and repaints.
func (f *Farm) advance(elapsed time.Duration) {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	growth := elapsed
	if f.watered {
		growth *= 2 // watered fields grow for double time
	}
	for i := range f.crops {
		f.crops[i].growth += growth
	}
	f.mu.Unlock()

	f.render()
}

// OnTasksLoaded replants the field to mirror the task list, keeping growth
// of crops whose task survived.
func (f *Farm) OnTasksLoaded(e tasksource.TasksLoaded) {
	f.mu.Lock()
	f.current = e.CurrentTask
	f.plantLocked(e)
	f.mu.Unlock()
	f.render()
}

// OnTaskCompleted harvests the crop for the completed task.
func (f *Farm) OnTaskCompleted(e tasksource.TaskCompleted) {
	f.mu.Lock()
	for i, c := range f.crops {
		if c.taskID == e.TaskID {
			f.crops = append(f.crops[:i], f.crops[i+1:]...)
			break
		}
	}
	f.harvested++
	f.score += scorePerTask
	f.mu.Unlock()
	f.render()
}

// OnTimerCompleted waters the field after a finished work phase.
func (f *Farm) OnTimerCompleted(e pomodoro.Completed) {
	f.mu.Lock()
	if !e.WasBreak {
		f.score += scorePerPomodoro
		f.watered = true
	}
	f.mu.Unlock()
	f.render()
}

// OnWorkStarted ends the watering bonus with the break.
func (f *Farm) OnWorkStarted(state models.TimerState) {
	f.mu.Lock()
	f.timer = state
	f.watered = false
	f.mu.Unlock()
	f.render()
}

// OnBreakStarted repaints with the break countdown.
func (f *Farm) OnBreakStarted(state models.TimerState) {
	f.mu.Lock()
	f.timer = state
	f.mu.Unlock()
	f.render()
}

// OnPomodoroTick repaints the countdown.
func (f *Farm) OnPomodoroTick(state models.TimerState) {
	f.mu.Lock()
	f.timer = state
	f.mu.Unlock()
	f.render()
}

// OnEvent keeps the farm honest about events it doesn't model.
func (f *Farm) OnEvent(name string, _ any) {
	// Timer start/pause/reset only affect the countdown line; the next
	// tick repaints it.
}

// OnRendererEvent handles clicks on the field: clicking a ripe crop
// harvests it for bonus score.
func (f *Farm) OnRendererEvent(e theme.RendererEvent) {
	if e.EventName != "plot-clicked" {
		return
	}
	idx, ok := theme.IntValue(e.Data["plot"])
	if !ok {
		return
	}

	f.mu.Lock()
	if idx >= 0 && idx < len(f.crops) && f.crops[idx].growth >= stageDuration*time.Duration(len(cropStages)-1) {
		f.crops = append(f.crops[:idx], f.crops[idx+1:]...)
		f.harvested++
		f.score += scorePerTask * 2
	}
	f.mu.Unlock()
	f.render()
}

// Score returns the farm's score.
func (f *Farm) Score() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.score
}

// Level returns the farm's level, one per hundred points.
func (f *Farm) Level() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.score/scorePerLevel + 1
}

// Harvested returns the inventory count.
func (f *Farm) Harvested() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.harvested
}

// plantLocked syncs crops to the task list. Caller holds the lock.
func (f *Farm) plantLocked(e tasksource.TasksLoaded) {
	existing := make(map[string]time.Duration, len(f.crops))
	for _, c := range f.crops {
		existing[c.taskID] = c.growth
	}

	plots := 6
	if v, ok := f.Setting("plots"); ok {
		if n, ok := theme.IntValue(v); ok && n > 0 {
			plots = n
		}
	}

	crops := make([]crop, 0, plots)
	for _, id := range e.TaskIDs {
		if len(crops) == plots {
			break
		}
		crops = append(crops, crop{taskID: id, growth: existing[id]})
	}
	f.crops = crops
}

func (f *Farm) render() {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}

	var field strings.Builder
	for i, c := range f.crops {
		if i > 0 {
			field.WriteString(" ")
		}
		stage := int(c.growth / stageDuration)
		if stage >= len(cropStages) {
			stage = len(cropStages) - 1
		}
		glyph := cropStages[stage]
		if stage == len(cropStages)-1 {
			field.WriteString(f.ripeStyle.Render(glyph))
		} else {
			field.WriteString(f.cropStyle.Render(glyph))
		}
	}
	if len(f.crops) == 0 {
		field.WriteString(f.soilStyle.Render("~ fallow field ~"))
	}

	lines := []string{field.String()}
	if f.current != nil {
		lines = append(lines, f.taskStyle.Render("tending: "+f.current.Content))
	}

	showScore := true
	if v, ok := f.Setting("show_score"); ok {
		if b, ok := v.(bool); ok {
			showScore = b
		}
	}
	if showScore {
		lines = append(lines, f.scoreStyle.Render(fmt.Sprintf(
			"lv %d  %d pts  %d harvested", f.score/scorePerLevel+1, f.score, f.harvested)))
	}

	minutes := f.timer.TimeRemainingSeconds / 60
	seconds := f.timer.TimeRemainingSeconds % 60
	phase := "work"
	if f.timer.IsBreak {
		phase = "rest"
	}
	sun := "☾"
	if f.timer.IsActive {
		sun = "☀"
	}
	lines = append(lines, f.soilStyle.Render(fmt.Sprintf("%s %s %02d:%02d", sun, phase, minutes, seconds)))
	f.mu.Unlock()

	f.deps.Surface.ShowFrame(theme.Frame{Theme: RendererFarm, Title: "taskdeck farm", Lines: lines})
}
