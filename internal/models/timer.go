package models

// Timer phase minutes must stay within this range.
const (
	MinPhaseMinutes = 1
	MaxPhaseMinutes = 60
)

// TimerState is a snapshot of the interval timer. TimeRemainingSeconds is
// reset to the entered phase's full duration on every phase entry and on
// manual reset.
type TimerState struct {
	IsActive             bool           `json:"is_active"`
	IsBreak              bool           `json:"is_break"`
	TimeRemainingSeconds int            `json:"time_remaining_seconds"`
	WorkMinutes          int            `json:"work_minutes"`
	BreakMinutes         int            `json:"break_minutes"`
	WorkProjectID        string         `json:"work_project_id,omitempty"`
	BreakProjectID       string         `json:"break_project_id,omitempty"`
	TaskMemory           map[string]int `json:"task_memory,omitempty"`
}

// PhaseProjectID returns the project associated with the current phase,
// or empty if none is configured.
func (s TimerState) PhaseProjectID() string {
	if s.IsBreak {
		return s.BreakProjectID
	}
	return s.WorkProjectID
}

// Clone returns a copy with its own TaskMemory map.
func (s TimerState) Clone() TimerState {
	out := s
	out.TaskMemory = make(map[string]int, len(s.TaskMemory))
	for k, v := range s.TaskMemory {
		out.TaskMemory[k] = v
	}
	return out
}
