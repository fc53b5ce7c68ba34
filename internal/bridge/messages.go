// Package bridge relays events and commands between the coordinator daemon
// and the unprivileged display surface. Internal event payloads are
// translated into a stable external message contract; the transport is gRPC
// with hand-written service descriptors and a JSON codec (no generated
// code).
package bridge

import (
	"encoding/json"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/taskdeck-io/taskdeck/internal/models"
	"github.com/taskdeck-io/taskdeck/internal/theme"
)

// ============================================================================
// Surface-bound messages (daemon -> display)
// ============================================================================

// SurfaceEvent kinds.
const (
	KindThemeChange   = "theme-change"
	KindFrame         = "frame"
	KindEvent         = "event"
	KindNotification  = "notification"
	KindThemeSettings = "theme-settings"
)

// SurfaceEvent is one message on the daemon->surface stream. Exactly one of
// the payload fields matching Kind is set.
type SurfaceEvent struct {
	Kind          string          `json:"kind"`
	Theme         *theme.ThemeInfo `json:"theme,omitempty"`
	Frame         *theme.Frame     `json:"frame,omitempty"`
	Event         *DomainEvent     `json:"event,omitempty"`
	Notification  *Notification    `json:"notification,omitempty"`
	ThemeSettings *ThemeSettings   `json:"theme_settings,omitempty"`
}

// DomainEvent is a forwarded domain event, payload encoded as JSON.
type DomainEvent struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Notification asks the surface to show a transient message.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ThemeSettings carries freshly merged settings for a theme.
type ThemeSettings struct {
	Theme    string         `json:"theme"`
	Settings map[string]any `json:"settings"`
}

// ============================================================================
// Command messages (display -> daemon)
// ============================================================================

// Command names accepted by the Command RPC.
const (
	CmdNextTask       = "next-task"
	CmdCompleteTask   = "complete-task"
	CmdAddTask        = "add-task"
	CmdRefresh        = "refresh"
	CmdTimerToggle    = "timer-toggle"
	CmdTimerStart     = "timer-start"
	CmdTimerPause     = "timer-pause"
	CmdTimerReset     = "timer-reset"
	CmdTimerNextPhase = "timer-next-phase"
	CmdSetWorkTime    = "timer-set-work"
	CmdSetBreakTime   = "timer-set-break"
	CmdThemeSwitch    = "theme-switch"
	CmdThemeSettings  = "theme-settings"
	CmdRendererEvent  = "renderer-event"
	CmdDragStart      = "drag-start"
	CmdDragMove       = "drag-move"
	CmdDragEnd        = "drag-end"
)

// RequestMeta identifies the client making a request.
type RequestMeta struct {
	Origin   string `json:"origin,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Version  string `json:"version,omitempty"`
}

// CommandRequest is a user-driven action from the display surface. Fields
// beyond Name are set per command.
type CommandRequest struct {
	Meta      *RequestMeta   `json:"meta,omitempty"`
	Name      string         `json:"name"`
	Content   string         `json:"content,omitempty"`    // add-task
	ProjectID string         `json:"project_id,omitempty"` // add-task
	TaskID    string         `json:"task_id,omitempty"`    // complete-task; empty = current
	Minutes   int            `json:"minutes,omitempty"`    // timer-set-*
	Theme     string         `json:"theme,omitempty"`      // theme-switch, theme-settings, renderer-event
	Event     string         `json:"event,omitempty"`      // renderer-event
	Data      map[string]any `json:"data,omitempty"`       // renderer-event, theme-settings
	X         int            `json:"x,omitempty"`          // drag-*
	Y         int            `json:"y,omitempty"`          // drag-*
}

// CommandReply reports the outcome of a command.
type CommandReply struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// SubscribeRequest opens the surface event stream.
type SubscribeRequest struct {
	Meta *RequestMeta `json:"meta,omitempty"`
}

// ============================================================================
// Query messages
// ============================================================================

// SnapshotRequest asks for the current domain state.
type SnapshotRequest struct {
	Meta *RequestMeta `json:"meta,omitempty"`
}

// Snapshot is the current domain state, used by a freshly connected surface
// before any events arrive.
type Snapshot struct {
	Tasks       []models.Task    `json:"tasks"`
	CurrentTask *models.Task     `json:"current_task,omitempty"`
	Timer       models.TimerState `json:"timer"`
	Theme       *theme.ThemeInfo  `json:"theme,omitempty"`
}

// ThemeListRequest asks for the registered themes.
type ThemeListRequest struct {
	Meta *RequestMeta `json:"meta,omitempty"`
}

// ThemeList holds the registered themes in registration order.
type ThemeList struct {
	Themes []theme.ThemeInfo `json:"themes"`
	Active string            `json:"active,omitempty"`
}

// StatusRequest asks for daemon status.
type StatusRequest struct {
	Meta *RequestMeta `json:"meta,omitempty"`
}

// DaemonStatus reports the daemon's vitals.
type DaemonStatus struct {
	Host        string                 `json:"host"`
	Port        int32                  `json:"port"`
	Pid         int32                  `json:"pid"`
	StartedAt   *timestamppb.Timestamp `json:"started_at,omitempty"`
	ActiveTheme string                 `json:"active_theme,omitempty"`
	TaskCount   int32                  `json:"task_count"`
	Subscribers int32                  `json:"subscribers"`
}
