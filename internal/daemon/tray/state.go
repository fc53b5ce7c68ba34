// Package tray implements the system tray icon and menu for the daemon.
package tray

// DaemonState provides the tray menu with daemon state and actions.
type DaemonState interface {
	Port() int
	ActiveTheme() string
	RequestShutdown()

	// Menu actions. Called from the tray click loop, so implementations
	// must not block.
	ToggleTimer()
	NextTask()
	CompleteTask()
}
