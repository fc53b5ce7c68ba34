// Package daemon assembles the coordinator process: event bus, settings
// store, task source, interval timer, theme coordinator, and the bridge
// server the display surfaces connect to.
package daemon

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/taskdeck-io/taskdeck/internal/bridge"
	"github.com/taskdeck-io/taskdeck/internal/bus"
	"github.com/taskdeck-io/taskdeck/internal/config"
	"github.com/taskdeck-io/taskdeck/internal/daemon/tray"
	"github.com/taskdeck-io/taskdeck/internal/models"
	"github.com/taskdeck-io/taskdeck/internal/pomodoro"
	"github.com/taskdeck-io/taskdeck/internal/tasksource"
	"github.com/taskdeck-io/taskdeck/internal/telemetry"
	"github.com/taskdeck-io/taskdeck/internal/theme"
	"github.com/taskdeck-io/taskdeck/internal/theme/builtin"
)

// Tasks are refetched on this interval so the overlay tracks edits made in
// the tracker's own apps.
const refreshInterval = 5 * time.Minute

// DefaultTheme is activated when no saved preference exists.
const DefaultTheme = builtin.RendererMinimal

// Options configure the daemon.
type Options struct {
	Port    int // bridge port, 0 for dynamic
	WebPort int // grpc-web port, 0 disables the proxy
}

// Daemon owns every coordinator-side service and their bus wiring.
type Daemon struct {
	opts     Options
	bus      *bus.Bus
	store    *config.Store
	watcher  *config.Watcher
	tasks    *tasksource.Service
	timer    *pomodoro.Service
	themes   *theme.Coordinator
	server   *bridge.Server
	web      *bridge.WebProxy
	reporter *telemetry.Reporter

	refreshDone chan struct{}
	stopOnce    sync.Once
	onShutdown  func()
}

// New constructs and wires the daemon. Nothing is listening or fetching yet;
// call Start.
func New(opts Options) (*Daemon, error) {
	settingsPath, err := config.GlobalSettingsFile()
	if err != nil {
		return nil, err
	}

	b := bus.New()
	store, err := config.NewStore(settingsPath, b)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	watcher, err := config.NewWatcher(store)
	if err != nil {
		return nil, fmt.Errorf("failed to create settings watcher: %w", err)
	}

	source := store.TaskSource()
	tasks := tasksource.NewService(tasksource.NewClient(source.BaseURL, source.APIToken), b)
	timer := pomodoro.NewService(b, store.Timer())

	server, err := bridge.New(opts.Port, bridge.Deps{
		Tasks:    tasks,
		Timer:    timer,
		Settings: store,
	})
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		opts:        opts,
		bus:         b,
		store:       store,
		watcher:     watcher,
		tasks:       tasks,
		timer:       timer,
		server:      server,
		reporter:    telemetry.New(store),
		refreshDone: make(chan struct{}),
	}

	// The coordinator paints through the daemon so tray state and telemetry
	// ride along with every surface update.
	d.themes = theme.NewCoordinator(b, store, (*daemonSurface)(d), DefaultTheme)

	deps := builtin.Deps{Surface: (*daemonSurface)(d), Tasks: tasks, Timer: timer}
	for _, desc := range builtin.Descriptors(deps) {
		if err := d.themes.Register(desc); err != nil {
			return nil, err
		}
	}
	if dir, err := config.GlobalThemesDir(); err == nil {
		if n := d.themes.Discover(dir, builtin.Factories(deps)); n > 0 {
			log.Printf("Discovered %d theme manifest(s)", n)
		}
	}
	server.AttachThemes(d.themes)

	if opts.WebPort > 0 {
		d.web = bridge.NewWebProxy(server, opts.WebPort)
	}

	d.wire()
	return d, nil
}

// OnShutdown registers fn to run when something inside the daemon asks for
// shutdown (tray Quit). Must be set before Start.
func (d *Daemon) OnShutdown(fn func()) {
	d.onShutdown = fn
}

// Port returns the bridge port.
func (d *Daemon) Port() int {
	return d.server.Port()
}

// Start activates the saved theme, begins serving the bridge, and kicks off
// the initial fetch. Returns once everything is launched; errors from the
// running bridge arrive on the returned channel.
func (d *Daemon) Start(ctx context.Context) (<-chan error, error) {
	if err := d.watcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to start settings watcher: %w", err)
	}

	if err := d.themes.LoadSaved(ctx); err != nil {
		log.Printf("No theme activated: %v", err)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- d.server.Serve()
	}()
	if d.web != nil {
		go func() {
			if err := d.web.Serve(); err != nil {
				errCh <- err
			}
		}()
	}

	go d.initialFetch(ctx)
	go d.refreshLoop(ctx)

	d.reporter.Capture(telemetry.EventDaemonStarted, nil)
	return errCh, nil
}

// Stop tears the daemon down in reverse dependency order.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		close(d.refreshDone)
		d.timer.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := d.themes.Deactivate(ctx); err != nil {
			log.Printf("Theme deactivation failed: %v", err)
		}
		d.themes.Close()

		if d.web != nil {
			if err := d.web.Stop(ctx); err != nil {
				log.Printf("Web proxy shutdown: %v", err)
			}
		}
		d.server.Stop()
		d.watcher.Stop()
		d.reporter.Close()
	})
}

func (d *Daemon) initialFetch(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, tasksource.APITimeout)
	defer cancel()

	if err := d.tasks.FetchProjects(ctx); err != nil {
		log.Printf("Initial project fetch failed: %v", err)
	}

	// SelectProject fetches on its own; only a bare fetch otherwise.
	if projectID := d.store.TaskSource().ProjectID; projectID != "" {
		if err := d.tasks.SelectProject(ctx, projectID); err != nil {
			log.Printf("Initial task fetch failed: %v", err)
		}
		return
	}
	if err := d.tasks.FetchTasks(ctx); err != nil {
		log.Printf("Initial task fetch failed: %v", err)
	}
}

func (d *Daemon) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.refreshDone:
			return
		case <-ticker.C:
			fetchCtx, cancel := context.WithTimeout(ctx, tasksource.APITimeout)
			if err := d.tasks.FetchTasks(fetchCtx); err != nil {
				log.Printf("Task refresh failed: %v", err)
			}
			cancel()
		}
	}
}

// wire connects the services that must react to each other's events. Themes
// get their events through the coordinator; everything here is coordinator-
// adjacent glue (tray, telemetry, phase project switching).
func (d *Daemon) wire() {
	// Entering a phase switches the task list to that phase's project and
	// restores the cursor position it had last time.
	d.bus.Subscribe(pomodoro.EventWorkStarted, func(payload any) {
		d.enterPhase(payload)
	})
	d.bus.Subscribe(pomodoro.EventBreakStarted, func(payload any) {
		d.enterPhase(payload)
	})

	d.bus.Subscribe(tasksource.EventTasksLoaded, func(payload any) {
		if loaded, ok := payload.(tasksource.TasksLoaded); ok {
			title := ""
			if loaded.CurrentTask != nil {
				title = loaded.CurrentTask.Content
			}
			tray.UpdateTask(title)
		}
	})

	for _, name := range []string{
		pomodoro.EventTimerStarted,
		pomodoro.EventTimerPaused,
		pomodoro.EventTimerReset,
		pomodoro.EventTimerTick,
		pomodoro.EventWorkStarted,
		pomodoro.EventBreakStarted,
	} {
		d.bus.Subscribe(name, func(payload any) {
			if state, ok := payload.(models.TimerState); ok {
				tray.UpdateTimer(formatTimerLine(state))
			}
		})
	}

	d.bus.Subscribe(pomodoro.EventTimerCompleted, func(payload any) {
		if completed, ok := payload.(pomodoro.Completed); ok && !completed.WasBreak {
			d.reporter.Capture(telemetry.EventPomodoroCompleted, telemetry.Sanitize(d.timer.Snapshot()))
		}
	})

	d.bus.Subscribe(tasksource.EventTaskCompleted, func(any) {
		d.reporter.Capture(telemetry.EventTaskCompleted, nil)
	})

	// Token or base URL changes swap the tracker client and refetch.
	d.bus.Subscribe(config.EventSettingsChanged, func(payload any) {
		changed, ok := payload.(config.SettingsChanged)
		if !ok {
			return
		}
		switch changed.Area {
		case config.AreaTaskSource, config.AreaExternal:
			source := d.store.TaskSource()
			d.tasks.SetAPI(tasksource.NewClient(source.BaseURL, source.APIToken))
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), tasksource.APITimeout)
				defer cancel()
				if err := d.tasks.FetchTasks(ctx); err != nil {
					log.Printf("Refetch after settings change failed: %v", err)
				}
			}()
		}
	})
}

// enterPhase handles a work-started or break-started snapshot: the index in
// the outgoing project is remembered, the phase's project selected, and the
// remembered index restored.
func (d *Daemon) enterPhase(payload any) {
	state, ok := payload.(models.TimerState)
	if !ok {
		return
	}
	projectID := state.PhaseProjectID()
	previous := d.tasks.SelectedProject()
	if projectID == previous {
		return
	}

	d.timer.RememberTaskIndex(previous, d.tasks.CurrentIndex())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), tasksource.APITimeout)
		defer cancel()
		if err := d.tasks.SelectProject(ctx, projectID); err != nil {
			log.Printf("Phase project switch failed: %v", err)
			return
		}
		if index, ok := d.timer.RecallTaskIndex(projectID); ok {
			d.tasks.SetCurrentIndex(index)
		}
	}()
}

func formatTimerLine(state models.TimerState) string {
	phase := "Work"
	if state.IsBreak {
		phase = "Break"
	}
	if !state.IsActive {
		return fmt.Sprintf("%s %02d:%02d (paused)",
			phase, state.TimeRemainingSeconds/60, state.TimeRemainingSeconds%60)
	}
	return fmt.Sprintf("%s %02d:%02d",
		phase, state.TimeRemainingSeconds/60, state.TimeRemainingSeconds%60)
}

// daemonSurface is the Daemon acting as the theme coordinator's surface:
// events reach every connected display through the bridge, and the tray and
// telemetry observe theme changes on the way past.
type daemonSurface Daemon

func (s *daemonSurface) ThemeChanged(info theme.ThemeInfo) {
	s.server.ThemeChanged(info)
	tray.UpdateTheme(info.DisplayName)
	s.reporter.Capture(telemetry.EventThemeActivated, map[string]any{"theme": info.Name})
}

func (s *daemonSurface) ThemeSettingsUpdated(name string, settings map[string]any) {
	s.server.ThemeSettingsUpdated(name, settings)
}

func (s *daemonSurface) ShowFrame(frame theme.Frame) {
	s.server.ShowFrame(frame)
}

func (s *daemonSurface) Notify(title, body string) {
	s.server.Notify(title, body)
}

func (s *daemonSurface) ForwardEvent(name string, payload any) {
	s.server.ForwardEvent(name, payload)
}

// TrayState adapts the daemon to the tray menu.
type TrayState struct {
	d *Daemon
}

// NewTrayState creates a TrayState for the given daemon.
func NewTrayState(d *Daemon) *TrayState {
	return &TrayState{d: d}
}

// Port returns the bridge port.
func (t *TrayState) Port() int {
	return t.d.Port()
}

// ActiveTheme returns the active theme's name.
func (t *TrayState) ActiveTheme() string {
	return t.d.themes.ActiveName()
}

// ToggleTimer starts or pauses the interval timer.
func (t *TrayState) ToggleTimer() {
	t.d.timer.Toggle()
}

// NextTask cycles the task list.
func (t *TrayState) NextTask() {
	t.d.tasks.NextTask()
}

// CompleteTask completes the current task.
func (t *TrayState) CompleteTask() {
	current := t.d.tasks.CurrentTask()
	if current == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), tasksource.APITimeout)
		defer cancel()
		if err := t.d.tasks.CompleteTask(ctx, current.ID); err != nil {
			log.Printf("Complete task from tray failed: %v", err)
		}
	}()
}

// RequestShutdown asks the process to exit.
func (t *TrayState) RequestShutdown() {
	if t.d.onShutdown != nil {
		t.d.onShutdown()
	}
}
