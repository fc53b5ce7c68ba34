package builtin

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/taskdeck-io/taskdeck/internal/models"
	"github.com/taskdeck-io/taskdeck/internal/pomodoro"
	"github.com/taskdeck-io/taskdeck/internal/tasksource"
	"github.com/taskdeck-io/taskdeck/internal/theme"
)

// fakeSurface counts frames so tests can observe loop activity.
type fakeSurface struct {
	mu     sync.Mutex
	frames []theme.Frame
}

func (s *fakeSurface) ThemeChanged(theme.ThemeInfo)                  {}
func (s *fakeSurface) ThemeSettingsUpdated(string, map[string]any)   {}
func (s *fakeSurface) Notify(string, string)                         {}
func (s *fakeSurface) ForwardEvent(string, any)                      {}
func (s *fakeSurface) ShowFrame(f theme.Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
}

func (s *fakeSurface) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

type fixedTasks struct{ snapshot tasksource.TasksLoaded }

func (f fixedTasks) Snapshot() tasksource.TasksLoaded { return f.snapshot }

type fixedTimer struct{ state models.TimerState }

func (f fixedTimer) Snapshot() models.TimerState { return f.state }

func newTestFarm(tasks ...models.Task) (*Farm, *fakeSurface) {
	surface := &fakeSurface{}
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	snapshot := tasksource.TasksLoaded{Tasks: tasks, TaskIDs: ids, CurrentTaskIndex: -1}
	if len(tasks) > 0 {
		snapshot.CurrentTaskIndex = 0
		snapshot.CurrentTask = &tasks[0]
	}
	farm := NewFarm(Deps{
		Surface: surface,
		Tasks:   fixedTasks{snapshot: snapshot},
		Timer:   fixedTimer{state: models.TimerState{WorkMinutes: 25, BreakMinutes: 5, TimeRemainingSeconds: 1500}},
	})
	return farm, surface
}

func TestTaskCompletionHarvests(t *testing.T) {
	farm, _ := newTestFarm(
		models.Task{ID: "t1", Content: "a"},
		models.Task{ID: "t2", Content: "b"},
	)
	ctx := context.Background()
	if err := farm.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := farm.Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer farm.Deactivate(ctx)

	farm.OnTaskCompleted(tasksource.TaskCompleted{TaskID: "t1"})

	if farm.Score() != scorePerTask {
		t.Errorf("score = %d, want %d", farm.Score(), scorePerTask)
	}
	if farm.Harvested() != 1 {
		t.Errorf("harvested = %d, want 1", farm.Harvested())
	}
}

func TestPomodoroCompletionScoresAndWaters(t *testing.T) {
	farm, _ := newTestFarm(models.Task{ID: "t1", Content: "a"})
	ctx := context.Background()
	if err := farm.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := farm.Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer farm.Deactivate(ctx)

	farm.OnTimerCompleted(pomodoro.Completed{WasBreak: false, NextMode: pomodoro.ModeBreak})
	if farm.Score() != scorePerPomodoro {
		t.Errorf("score after work pomodoro = %d, want %d", farm.Score(), scorePerPomodoro)
	}

	// A finished break scores nothing.
	farm.OnTimerCompleted(pomodoro.Completed{WasBreak: true, NextMode: pomodoro.ModeWork})
	if farm.Score() != scorePerPomodoro {
		t.Errorf("score after break = %d, want unchanged %d", farm.Score(), scorePerPomodoro)
	}
}

func TestLevelAdvancesWithScore(t *testing.T) {
	farm, _ := newTestFarm()
	if farm.Level() != 1 {
		t.Fatalf("fresh farm level = %d, want 1", farm.Level())
	}
	for i := 0; i < 10; i++ {
		farm.OnTaskCompleted(tasksource.TaskCompleted{TaskID: "x"})
	}
	if farm.Level() != 2 {
		t.Errorf("level after 100 points = %d, want 2", farm.Level())
	}
}

func TestFrameLoopStopsOnDeactivate(t *testing.T) {
	farm, surface := newTestFarm(models.Task{ID: "t1", Content: "a"})
	ctx := context.Background()
	if err := farm.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := farm.Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	time.Sleep(3 * farmFrameInterval / 2)
	if surface.frameCount() < 2 {
		t.Fatalf("frame loop produced %d frames while active, want >= 2", surface.frameCount())
	}

	if err := farm.Deactivate(ctx); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	quiesced := surface.frameCount()

	time.Sleep(3 * farmFrameInterval)
	if surface.frameCount() != quiesced {
		t.Fatalf("frames kept arriving after deactivation: %d -> %d", quiesced, surface.frameCount())
	}
}

func TestReactivationRunsSingleLoop(t *testing.T) {
	farm, surface := newTestFarm(models.Task{ID: "t1", Content: "a"})
	ctx := context.Background()
	if err := farm.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := farm.Activate(ctx); err != nil {
			t.Fatalf("Activate #%d: %v", i, err)
		}
		if err := farm.Deactivate(ctx); err != nil {
			t.Fatalf("Deactivate #%d: %v", i, err)
		}
	}

	if err := farm.Activate(ctx); err != nil {
		t.Fatalf("final Activate: %v", err)
	}
	defer farm.Deactivate(ctx)

	surface.mu.Lock()
	surface.frames = nil
	surface.mu.Unlock()

	time.Sleep(farmFrameInterval + farmFrameInterval/2)

	// One loop at 500ms produces at most 3 frames in 750ms; duplicate
	// loops would double that.
	if n := surface.frameCount(); n > 4 {
		t.Fatalf("got %d frames in 1.5 intervals, duplicate loops suspected", n)
	}
}

func TestPlotClickOverBridgeHarvestsRipeCrop(t *testing.T) {
	farm, _ := newTestFarm(models.Task{ID: "t1", Content: "a"})
	ctx := context.Background()
	if err := farm.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := farm.Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer farm.Deactivate(ctx)

	// Grow the crop past the last stage.
	farm.advance(time.Duration(len(cropStages)) * stageDuration)

	// Clicks arrive from the display surface as JSON, so the plot index
	// decodes as float64, not int.
	var ev theme.RendererEvent
	raw := `{"theme_name":"farm","event_name":"plot-clicked","data":{"plot":0}}`
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, isInt := ev.Data["plot"].(int); isInt {
		t.Fatal("decoded plot index is an int; the test no longer exercises the JSON path")
	}

	farm.OnRendererEvent(ev)

	if farm.Harvested() != 1 {
		t.Fatalf("harvested = %d, want 1", farm.Harvested())
	}
	if farm.Score() != scorePerTask*2 {
		t.Errorf("score = %d, want %d", farm.Score(), scorePerTask*2)
	}
}

func TestPlotSettingAcceptsJSONNumbers(t *testing.T) {
	farm, _ := newTestFarm(
		models.Task{ID: "t1", Content: "a"},
		models.Task{ID: "t2", Content: "b"},
		models.Task{ID: "t3", Content: "c"},
	)
	if err := farm.UpdateSettings(map[string]any{"plots": float64(2)}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	ctx := context.Background()
	if err := farm.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := farm.Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer farm.Deactivate(ctx)

	farm.mu.Lock()
	planted := len(farm.crops)
	farm.mu.Unlock()
	if planted != 2 {
		t.Fatalf("planted %d crops, want 2 per the plots setting", planted)
	}
}
