// Package pomodoro implements the work/break interval timer. The service
// owns the timer state machine exclusively; it is mutated only by its own
// tick logic and explicit setter calls, and every state change is announced
// on the bus.
package pomodoro

import (
	"fmt"
	"sync"
	"time"

	"github.com/taskdeck-io/taskdeck/internal/bus"
	"github.com/taskdeck-io/taskdeck/internal/models"
)

// Event names published by the service.
const (
	EventTimerStarted   = "timer-started"
	EventTimerPaused    = "timer-paused"
	EventTimerReset     = "timer-reset"
	EventTimerTick      = "timer-tick"
	EventTimerCompleted = "timer-completed"
	EventWorkStarted    = "work-started"
	EventBreakStarted   = "break-started"
)

// Timer modes reported in Completed.NextMode.
const (
	ModeWork  = "work"
	ModeBreak = "break"
)

// Completed is the payload of timer-completed, published when a phase counts
// down to zero, immediately before the next phase's started event.
type Completed struct {
	WasBreak bool   `json:"was_break"`
	NextMode string `json:"next_mode"`
}

// Service is the interval timer. Tick events fire once per second while
// active; the ticker goroutine is cancelled, not merely flagged, on pause
// and reset.
type Service struct {
	mu    sync.Mutex
	bus   *bus.Bus
	state models.TimerState
	stop  chan struct{} // non-nil while the ticker goroutine runs
}

// NewService creates a timer in the work phase, inactive, with the given
// durations. Durations outside [1,60] minutes fall back to defaults.
func NewService(b *bus.Bus, settings models.TimerSettings) *Service {
	work := settings.WorkMinutes
	if work < models.MinPhaseMinutes || work > models.MaxPhaseMinutes {
		work = 25
	}
	brk := settings.BreakMinutes
	if brk < models.MinPhaseMinutes || brk > models.MaxPhaseMinutes {
		brk = 5
	}

	return &Service{
		bus: b,
		state: models.TimerState{
			WorkMinutes:          work,
			BreakMinutes:         brk,
			TimeRemainingSeconds: work * 60,
			WorkProjectID:        settings.WorkProjectID,
			BreakProjectID:       settings.BreakProjectID,
			TaskMemory:           make(map[string]int),
		},
	}
}

// Snapshot returns a copy of the current timer state.
func (s *Service) Snapshot() models.TimerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Start begins counting down the current phase. No-op if already active.
func (s *Service) Start() {
	s.mu.Lock()
	if s.state.IsActive {
		s.mu.Unlock()
		return
	}
	s.state.IsActive = true
	s.startTickerLocked()
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.bus.Publish(EventTimerStarted, snapshot)
}

// Pause stops the countdown, keeping the remaining time. No-op if inactive.
func (s *Service) Pause() {
	s.mu.Lock()
	if !s.state.IsActive {
		s.mu.Unlock()
		return
	}
	s.state.IsActive = false
	s.stopTickerLocked()
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.bus.Publish(EventTimerPaused, snapshot)
}

// Toggle starts if paused and pauses if running.
func (s *Service) Toggle() {
	s.mu.Lock()
	active := s.state.IsActive
	s.mu.Unlock()

	if active {
		s.Pause()
	} else {
		s.Start()
	}
}

// Reset returns to an inactive work phase with the full work duration.
func (s *Service) Reset() {
	s.mu.Lock()
	s.stopTickerLocked()
	s.state.IsActive = false
	s.state.IsBreak = false
	s.state.TimeRemainingSeconds = s.state.WorkMinutes * 60
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.bus.Publish(EventTimerReset, snapshot)
}

// SetWorkTime sets the work phase duration. Values outside [1,60] are
// rejected. When the timer is sitting inactive in the work phase, the
// remaining time is refreshed to the new duration.
func (s *Service) SetWorkTime(minutes int) error {
	if minutes < models.MinPhaseMinutes || minutes > models.MaxPhaseMinutes {
		return fmt.Errorf("work minutes %d outside [%d,%d]", minutes, models.MinPhaseMinutes, models.MaxPhaseMinutes)
	}

	s.mu.Lock()
	s.state.WorkMinutes = minutes
	if !s.state.IsActive && !s.state.IsBreak {
		s.state.TimeRemainingSeconds = minutes * 60
	}
	s.mu.Unlock()
	return nil
}

// SetBreakTime sets the break phase duration. Values outside [1,60] are
// rejected. When the timer is sitting inactive in the break phase, the
// remaining time is refreshed to the new duration.
func (s *Service) SetBreakTime(minutes int) error {
	if minutes < models.MinPhaseMinutes || minutes > models.MaxPhaseMinutes {
		return fmt.Errorf("break minutes %d outside [%d,%d]", minutes, models.MinPhaseMinutes, models.MaxPhaseMinutes)
	}

	s.mu.Lock()
	s.state.BreakMinutes = minutes
	if !s.state.IsActive && s.state.IsBreak {
		s.state.TimeRemainingSeconds = minutes * 60
	}
	s.mu.Unlock()
	return nil
}

// SetPhaseProjects sets the per-phase project filters.
func (s *Service) SetPhaseProjects(workID, breakID string) {
	s.mu.Lock()
	s.state.WorkProjectID = workID
	s.state.BreakProjectID = breakID
	s.mu.Unlock()
}

// StartNextPhase skips the rest of the current phase and enters the other
// one, keeping the active/paused state.
func (s *Service) StartNextPhase() {
	s.mu.Lock()
	event, snapshot := s.enterNextPhaseLocked()
	s.mu.Unlock()

	s.bus.Publish(event, snapshot)
}

// RememberTaskIndex records the cursor position last used for a project, so
// phase switches can restore it.
func (s *Service) RememberTaskIndex(projectID string, index int) {
	if projectID == "" || index < 0 {
		return
	}
	s.mu.Lock()
	s.state.TaskMemory[projectID] = index
	s.mu.Unlock()
}

// RecallTaskIndex returns the remembered cursor position for a project.
func (s *Service) RecallTaskIndex(projectID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.state.TaskMemory[projectID]
	return idx, ok
}

// Stop cancels the ticker goroutine without publishing. Used on daemon
// shutdown.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopTickerLocked()
	s.state.IsActive = false
	s.mu.Unlock()
}

// Tick advances the countdown by one second. Exposed so tests can drive the
// state machine without real time; the ticker goroutine is its only
// production caller.
func (s *Service) Tick() {
	s.mu.Lock()
	if !s.state.IsActive {
		s.mu.Unlock()
		return
	}

	s.state.TimeRemainingSeconds--
	if s.state.TimeRemainingSeconds > 0 {
		snapshot := s.state.Clone()
		s.mu.Unlock()
		s.bus.Publish(EventTimerTick, snapshot)
		return
	}

	completed := Completed{WasBreak: s.state.IsBreak, NextMode: ModeBreak}
	if s.state.IsBreak {
		completed.NextMode = ModeWork
	}
	event, snapshot := s.enterNextPhaseLocked()
	s.mu.Unlock()

	s.bus.Publish(EventTimerCompleted, completed)
	s.bus.Publish(event, snapshot)
}

// enterNextPhaseLocked flips the phase and resets the remaining time to the
// entered phase's full duration, returning the started event to publish.
func (s *Service) enterNextPhaseLocked() (string, models.TimerState) {
	s.state.IsBreak = !s.state.IsBreak
	if s.state.IsBreak {
		s.state.TimeRemainingSeconds = s.state.BreakMinutes * 60
		return EventBreakStarted, s.state.Clone()
	}
	s.state.TimeRemainingSeconds = s.state.WorkMinutes * 60
	return EventWorkStarted, s.state.Clone()
}

func (s *Service) startTickerLocked() {
	if s.stop != nil {
		return
	}
	stop := make(chan struct{})
	s.stop = stop

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	}()
}

func (s *Service) stopTickerLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}
