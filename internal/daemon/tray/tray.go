package tray

import (
	"fmt"

	"github.com/getlantern/systray"
)

var (
	state   DaemonState
	onStart func()
	onExit  func()

	taskItem  *systray.MenuItem
	timerItem *systray.MenuItem
	themeItem *systray.MenuItem
	portItem  *systray.MenuItem

	toggleItem   *systray.MenuItem
	nextItem     *systray.MenuItem
	completeItem *systray.MenuItem
	quitItem     *systray.MenuItem
)

// Run starts the system tray. This blocks the calling goroutine (must be main).
// onStartFn is called when the tray is ready (launch the bridge server here).
// onExitFn is called when the tray exits (cleanup here).
func Run(s DaemonState, onStartFn, onExitFn func()) {
	state = s
	onStart = onStartFn
	onExit = onExitFn
	systray.Run(onReady, onQuit)
}

// Quit signals the tray to exit.
func Quit() {
	systray.Quit()
}

func onReady() {
	systray.SetTemplateIcon(iconData, iconData)
	systray.SetTooltip("TaskDeck")

	header := systray.AddMenuItem("TaskDeck Daemon", "")
	header.Disable()

	portItem = systray.AddMenuItem("Starting...", "")
	portItem.Disable()

	systray.AddSeparator()

	// Live status lines, updated from the daemon's event subscriptions.
	taskItem = systray.AddMenuItem("No current task", "")
	taskItem.Disable()
	timerItem = systray.AddMenuItem("Timer idle", "")
	timerItem.Disable()
	themeItem = systray.AddMenuItem("Theme: none", "")
	themeItem.Disable()

	systray.AddSeparator()

	toggleItem = systray.AddMenuItem("Start/Pause Timer", "Toggle the work timer")
	nextItem = systray.AddMenuItem("Next Task", "Cycle to the next task")
	completeItem = systray.AddMenuItem("Complete Task", "Complete the current task")
	quitItem = systray.AddMenuItem("Quit", "Shut down TaskDeck daemon")

	if onStart != nil {
		onStart()
	}

	if state != nil {
		portItem.SetTitle(fmt.Sprintf("Running on port: %d", state.Port()))
		UpdateTheme(state.ActiveTheme())
	}

	go handleClicks()
}

func onQuit() {
	if onExit != nil {
		onExit()
	}
}

func handleClicks() {
	for {
		select {
		case <-toggleItem.ClickedCh:
			if state != nil {
				state.ToggleTimer()
			}
		case <-nextItem.ClickedCh:
			if state != nil {
				state.NextTask()
			}
		case <-completeItem.ClickedCh:
			if state != nil {
				state.CompleteTask()
			}
		case <-quitItem.ClickedCh:
			if state != nil {
				state.RequestShutdown()
			}
		}
	}
}

// UpdateTask refreshes the current-task line.
func UpdateTask(title string) {
	if taskItem == nil {
		return
	}
	if title == "" {
		taskItem.SetTitle("No current task")
	} else {
		taskItem.SetTitle(fmt.Sprintf("▸ %s", title))
	}
	updateTooltip(title)
}

// UpdateTimer refreshes the timer line with a preformatted string,
// e.g. "Work 24:31".
func UpdateTimer(line string) {
	if timerItem == nil {
		return
	}
	if line == "" {
		line = "Timer idle"
	}
	timerItem.SetTitle(line)
}

// UpdateTheme refreshes the active-theme line.
func UpdateTheme(name string) {
	if themeItem == nil {
		return
	}
	if name == "" {
		name = "none"
	}
	themeItem.SetTitle(fmt.Sprintf("Theme: %s", name))
}

func updateTooltip(task string) {
	if task == "" {
		systray.SetTooltip("TaskDeck")
		return
	}
	systray.SetTooltip(fmt.Sprintf("TaskDeck: %s", task))
}
