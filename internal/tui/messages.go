package tui

import (
	"github.com/taskdeck-io/taskdeck/internal/bridge"
)

// ConnectedMsg signals a successful bridge connection.
type ConnectedMsg struct {
	Client *bridge.Client
}

// DisconnectedMsg signals the daemon connection was lost.
type DisconnectedMsg struct{}

// SurfaceEventMsg carries one event from the subscribe stream.
type SurfaceEventMsg struct {
	Event *bridge.SurfaceEvent
}

// SnapshotMsg carries the initial domain state.
type SnapshotMsg struct {
	Snapshot *bridge.Snapshot
}

// ThemesLoadedMsg carries the theme list for cycling.
type ThemesLoadedMsg struct {
	List *bridge.ThemeList
}

// CommandRepliedMsg carries a command outcome worth surfacing.
type CommandRepliedMsg struct {
	Reply *bridge.CommandReply
}

// ErrorMsg carries an error to display.
type ErrorMsg struct {
	Err error
}

// ClearErrorMsg clears the error display.
type ClearErrorMsg struct{}

// ClearNoticeMsg clears the notification display.
type ClearNoticeMsg struct{}

// ReconnectMsg triggers a reconnection attempt.
type ReconnectMsg struct{}
