package theme

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/taskdeck-io/taskdeck/internal/bus"
	"github.com/taskdeck-io/taskdeck/internal/config"
	"github.com/taskdeck-io/taskdeck/internal/models"
	"github.com/taskdeck-io/taskdeck/internal/tasksource"
)

// recordingTheme records lifecycle calls and received events in a shared log
// so tests can assert cross-theme ordering.
type recordingTheme struct {
	Base
	name        string
	log         *[]string
	activateErr error
	initErr     error
	deactErr    error
	tasksSeen   []tasksource.TasksLoaded
	fallback    []string
	renderer    []RendererEvent
}

func (r *recordingTheme) record(step string) {
	*r.log = append(*r.log, r.name+":"+step)
}

func (r *recordingTheme) Initialize(context.Context) error {
	r.record("initialize")
	return r.initErr
}

func (r *recordingTheme) Activate(context.Context) error {
	r.record("activate")
	return r.activateErr
}

func (r *recordingTheme) Deactivate(context.Context) error {
	r.record("deactivate")
	return r.deactErr
}

func (r *recordingTheme) OnTasksLoaded(e tasksource.TasksLoaded) {
	r.record("tasks-loaded")
	r.tasksSeen = append(r.tasksSeen, e)
}

func (r *recordingTheme) OnEvent(name string, _ any) {
	r.fallback = append(r.fallback, name)
}

func (r *recordingTheme) OnRendererEvent(e RendererEvent) {
	r.renderer = append(r.renderer, e)
}

// nopSurface satisfies Surface for tests that don't assert bridge behavior.
type nopSurface struct {
	themeChanges []ThemeInfo
	settingsUpds []string
	forwarded    []string
}

func (s *nopSurface) ThemeChanged(info ThemeInfo) { s.themeChanges = append(s.themeChanges, info) }
func (s *nopSurface) ThemeSettingsUpdated(name string, _ map[string]any) {
	s.settingsUpds = append(s.settingsUpds, name)
}
func (s *nopSurface) ShowFrame(Frame)          {}
func (s *nopSurface) Notify(string, string)    {}
func (s *nopSurface) ForwardEvent(n string, _ any) {
	s.forwarded = append(s.forwarded, n)
}

func newTestCoordinator(t *testing.T) (*Coordinator, *bus.Bus, *nopSurface, *[]string) {
	t.Helper()
	b := bus.New()
	store, err := config.NewStore(filepath.Join(t.TempDir(), "settings.yaml"), b)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	surface := &nopSurface{}
	c := NewCoordinator(b, store, surface, "minimal")
	calls := &[]string{}
	return c, b, surface, calls
}

func register(t *testing.T, c *Coordinator, theme *recordingTheme) {
	t.Helper()
	err := c.Register(Descriptor{
		Name:        theme.name,
		DisplayName: theme.name,
		Impl:        theme,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", theme.name, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	c, _, _, calls := newTestCoordinator(t)
	impl := &recordingTheme{name: "x", log: calls}

	tests := []struct {
		name string
		desc Descriptor
	}{
		{"missing name", Descriptor{DisplayName: "X", Impl: impl}},
		{"missing display name", Descriptor{Name: "x", Impl: impl}},
		{"missing implementation", Descriptor{Name: "x", DisplayName: "X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Register(tt.desc); err == nil {
				t.Error("Register succeeded, want error")
			}
		})
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	c, _, _, calls := newTestCoordinator(t)
	register(t, c, &recordingTheme{name: "default", log: calls})

	err := c.Register(Descriptor{
		Name:        "default",
		DisplayName: "Another",
		Impl:        &recordingTheme{name: "other", log: calls},
	})
	if err == nil {
		t.Fatal("duplicate Register succeeded, want error")
	}
	if n := len(c.Themes()); n != 1 {
		t.Fatalf("registry holds %d descriptors for the name, want 1", n)
	}
}

func TestActivateDeactivatesPreviousFirst(t *testing.T) {
	c, _, _, calls := newTestCoordinator(t)
	a := &recordingTheme{name: "a", log: calls}
	b := &recordingTheme{name: "b", log: calls}
	register(t, c, a)
	register(t, c, b)

	ctx := context.Background()
	if err := c.Activate(ctx, "a"); err != nil {
		t.Fatalf("Activate(a): %v", err)
	}
	if err := c.Activate(ctx, "b"); err != nil {
		t.Fatalf("Activate(b): %v", err)
	}

	want := []string{"a:initialize", "a:activate", "a:deactivate", "b:initialize", "b:activate"}
	if len(*calls) != len(want) {
		t.Fatalf("calls = %v, want %v", *calls, want)
	}
	for i := range want {
		if (*calls)[i] != want[i] {
			t.Fatalf("calls = %v, want %v", *calls, want)
		}
	}
	if c.ActiveName() != "b" {
		t.Errorf("active = %q, want b", c.ActiveName())
	}
}

func TestActivateSameThemeInitializesOnce(t *testing.T) {
	c, _, _, calls := newTestCoordinator(t)
	a := &recordingTheme{name: "a", log: calls}
	register(t, c, a)

	ctx := context.Background()
	if err := c.Activate(ctx, "a"); err != nil {
		t.Fatalf("first Activate: %v", err)
	}
	if err := c.Activate(ctx, "a"); err != nil {
		t.Fatalf("second Activate: %v", err)
	}

	inits := 0
	for _, call := range *calls {
		if call == "a:initialize" {
			inits++
		}
	}
	if inits != 1 {
		t.Errorf("initialize called %d times, want 1", inits)
	}
}

func TestFailedActivationLeavesNoActiveTheme(t *testing.T) {
	c, _, _, calls := newTestCoordinator(t)
	good := &recordingTheme{name: "good", log: calls}
	bad := &recordingTheme{name: "bad", log: calls, activateErr: errors.New("no assets")}
	register(t, c, good)
	register(t, c, bad)

	ctx := context.Background()
	if err := c.Activate(ctx, "good"); err != nil {
		t.Fatalf("Activate(good): %v", err)
	}
	if err := c.Activate(ctx, "bad"); err == nil {
		t.Fatal("Activate(bad) succeeded, want error")
	}

	if got := c.ActiveName(); got != "" {
		t.Errorf("active after failed activation = %q, want none", got)
	}
}

func TestDeactivateFailureStillClearsPointer(t *testing.T) {
	c, _, _, calls := newTestCoordinator(t)
	a := &recordingTheme{name: "a", log: calls, deactErr: errors.New("leaked loop")}
	register(t, c, a)

	ctx := context.Background()
	if err := c.Activate(ctx, "a"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := c.Deactivate(ctx); err == nil {
		t.Fatal("Deactivate succeeded, want reported failure")
	}
	if c.ActiveName() != "" {
		t.Errorf("active = %q after failed deactivation, want none", c.ActiveName())
	}

	// No-op success when nothing is active.
	if err := c.Deactivate(ctx); err != nil {
		t.Errorf("Deactivate with nothing active: %v", err)
	}
}

func TestOnlyActiveThemeReceivesEvents(t *testing.T) {
	c, b, _, calls := newTestCoordinator(t)
	def := &recordingTheme{name: "default", log: calls}
	farm := &recordingTheme{name: "farming", log: calls}
	register(t, c, def)
	register(t, c, farm)

	ctx := context.Background()
	if err := c.Activate(ctx, "default"); err != nil {
		t.Fatalf("Activate(default): %v", err)
	}

	current := models.Task{ID: "t1", Content: "Write report"}
	b.Publish(tasksource.EventTasksLoaded, tasksource.TasksLoaded{
		Tasks:            []models.Task{current},
		TaskIDs:          []string{"t1"},
		CurrentTaskIndex: 0,
		CurrentTask:      &current,
	})

	if len(def.tasksSeen) != 1 {
		t.Fatalf("default saw %d tasks-loaded, want 1", len(def.tasksSeen))
	}
	if def.tasksSeen[0].CurrentTask.Content != "Write report" {
		t.Errorf("payload = %+v", def.tasksSeen[0].CurrentTask)
	}
	if len(farm.tasksSeen) != 0 {
		t.Fatalf("inactive farming theme saw %d events, want 0", len(farm.tasksSeen))
	}

	if err := c.Activate(ctx, "farming"); err != nil {
		t.Fatalf("Activate(farming): %v", err)
	}
	b.Publish(tasksource.EventTasksLoaded, tasksource.TasksLoaded{CurrentTaskIndex: -1})

	if len(def.tasksSeen) != 1 {
		t.Errorf("default saw events after deactivation")
	}
	if len(farm.tasksSeen) != 1 {
		t.Errorf("farming saw %d events while active, want 1", len(farm.tasksSeen))
	}
}

func TestFallbackReceivesUnhandledEvents(t *testing.T) {
	c, b, _, calls := newTestCoordinator(t)
	a := &recordingTheme{name: "a", log: calls}
	register(t, c, a)

	if err := c.Activate(context.Background(), "a"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	// recordingTheme has no OnTaskCompleted, so this lands on OnEvent.
	b.Publish(tasksource.EventTaskCompleted, tasksource.TaskCompleted{TaskID: "t1"})

	if len(a.fallback) != 1 || a.fallback[0] != tasksource.EventTaskCompleted {
		t.Fatalf("fallback = %v, want [task-completed]", a.fallback)
	}
}

func TestRendererEventFiltering(t *testing.T) {
	c, _, _, calls := newTestCoordinator(t)
	other := &recordingTheme{name: "other", log: calls}
	register(t, c, other)

	if err := c.Activate(context.Background(), "other"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	c.HandleRendererEvent(RendererEvent{ThemeName: "stale", EventName: "clicked"})
	if len(other.renderer) != 0 {
		t.Fatalf("stale renderer event was forwarded: %v", other.renderer)
	}

	c.HandleRendererEvent(RendererEvent{ThemeName: "other", EventName: "clicked"})
	if len(other.renderer) != 1 || other.renderer[0].EventName != "clicked" {
		t.Fatalf("renderer events = %v, want one 'clicked'", other.renderer)
	}
}

func TestThemeSettingsRoundTrip(t *testing.T) {
	c, _, surface, calls := newTestCoordinator(t)
	a := &recordingTheme{name: "a", log: calls}
	err := c.Register(Descriptor{
		Name:            "a",
		DisplayName:     "A",
		DefaultSettings: map[string]any{"x": 0, "speed": "slow"},
		Impl:            a,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := c.UpdateThemeSettings("a", map[string]any{"x": 1}); err != nil {
		t.Fatalf("UpdateThemeSettings: %v", err)
	}

	got, err := c.ThemeSettings("a")
	if err != nil {
		t.Fatalf("ThemeSettings: %v", err)
	}
	if got["x"] != 1 {
		t.Errorf("x = %v, want 1 (persisted over default)", got["x"])
	}
	if got["speed"] != "slow" {
		t.Errorf("speed = %v, want default retained", got["speed"])
	}

	// The theme saw the merged settings through its hook.
	if v, ok := a.Setting("x"); !ok || v != 1 {
		t.Errorf("theme live setting x = %v,%v, want 1", v, ok)
	}

	// Not active: no surface notification.
	if len(surface.settingsUpds) != 0 {
		t.Errorf("surface notified for inactive theme: %v", surface.settingsUpds)
	}

	if err := c.Activate(context.Background(), "a"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := c.UpdateThemeSettings("", map[string]any{"x": 2}); err != nil {
		t.Fatalf("UpdateThemeSettings (active): %v", err)
	}
	if len(surface.settingsUpds) != 1 || surface.settingsUpds[0] != "a" {
		t.Errorf("surface updates = %v, want [a]", surface.settingsUpds)
	}
}

func TestLoadSavedFallbacks(t *testing.T) {
	c, _, _, calls := newTestCoordinator(t)

	// Nothing registered: reported, not fatal.
	if err := c.LoadSaved(context.Background()); err == nil {
		t.Fatal("LoadSaved with empty registry succeeded, want error")
	}

	first := &recordingTheme{name: "first", log: calls}
	register(t, c, first)

	// Saved name missing, default "minimal" unregistered: first registered wins.
	if err := c.LoadSaved(context.Background()); err != nil {
		t.Fatalf("LoadSaved: %v", err)
	}
	if c.ActiveName() != "first" {
		t.Errorf("active = %q, want first", c.ActiveName())
	}
}

func TestLoadSavedPrefersPersistedChoice(t *testing.T) {
	c, _, _, calls := newTestCoordinator(t)
	a := &recordingTheme{name: "a", log: calls}
	b := &recordingTheme{name: "b", log: calls}
	register(t, c, a)
	register(t, c, b)

	ctx := context.Background()
	if err := c.Activate(ctx, "b"); err != nil { // persists "b"
		t.Fatalf("Activate: %v", err)
	}
	if err := c.Deactivate(ctx); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	if err := c.LoadSaved(ctx); err != nil {
		t.Fatalf("LoadSaved: %v", err)
	}
	if c.ActiveName() != "b" {
		t.Errorf("active = %q, want persisted b", c.ActiveName())
	}
}

func TestThemeChangeNotifiesSurface(t *testing.T) {
	c, _, surface, calls := newTestCoordinator(t)
	a := &recordingTheme{name: "a", log: calls}
	register(t, c, a)

	if err := c.Activate(context.Background(), "a"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if len(surface.themeChanges) != 1 {
		t.Fatalf("surface saw %d theme changes, want 1", len(surface.themeChanges))
	}
	if surface.themeChanges[0].Name != "a" {
		t.Errorf("theme change = %+v", surface.themeChanges[0])
	}
}

func TestDiscoverSkipsMalformedManifests(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	dir := t.TempDir()

	valid := "name: skin\ndisplay_name: Skin\nrenderer: minimal\n"
	if err := os.WriteFile(filepath.Join(dir, "skin.yaml"), []byte(valid), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	unknown := "name: ghost\ndisplay_name: Ghost\nrenderer: no-such-renderer\n"
	if err := os.WriteFile(filepath.Join(dir, "ghost.yaml"), []byte(unknown), 0o644); err != nil {
		t.Fatal(err)
	}

	calls := []string{}
	factories := map[string]Factory{
		"minimal": func() Theme { return &recordingTheme{name: "skin", log: &calls} },
	}

	if got := c.Discover(dir, factories); got != 1 {
		t.Fatalf("Discover registered %d themes, want 1", got)
	}
	if n := len(c.Themes()); n != 1 {
		t.Fatalf("registry holds %d themes, want 1", n)
	}
	if c.Themes()[0].Name != "skin" {
		t.Errorf("registered = %q, want skin", c.Themes()[0].Name)
	}
}

func TestActivateRestoresPersistedSettings(t *testing.T) {
	b := bus.New()
	path := filepath.Join(t.TempDir(), "settings.yaml")

	// A previous run persisted a non-default plots value.
	first, err := config.NewStore(path, b)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := first.MergeThemeSettings("a", map[string]any{"plots": 10}); err != nil {
		t.Fatalf("MergeThemeSettings: %v", err)
	}

	// Daemon restart: fresh store, fresh coordinator, fresh theme instance.
	store, err := config.NewStore(path, b)
	if err != nil {
		t.Fatalf("NewStore (reopen): %v", err)
	}
	c := NewCoordinator(b, store, &nopSurface{}, "a")
	calls := []string{}
	a := &recordingTheme{name: "a", log: &calls}
	err = c.Register(Descriptor{
		Name:            "a",
		DisplayName:     "A",
		DefaultSettings: map[string]any{"plots": 6, "show_score": true},
		Impl:            a,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := c.Activate(context.Background(), "a"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if v, ok := a.Setting("plots"); !ok || v != 10 {
		t.Errorf("live plots = %v,%v, want persisted 10", v, ok)
	}
	if v, ok := a.Setting("show_score"); !ok || v != true {
		t.Errorf("live show_score = %v,%v, want default true", v, ok)
	}
}

// slowTheme stretches its lifecycle calls so overlapping activations would
// interleave if they could.
type slowTheme struct {
	Base
	name string
	mu   *sync.Mutex
	log  *[]string
}

func (s *slowTheme) mark(step string) {
	s.mu.Lock()
	*s.log = append(*s.log, s.name+":"+step)
	s.mu.Unlock()
}

func (s *slowTheme) Activate(context.Context) error {
	s.mark("activate-enter")
	time.Sleep(2 * time.Millisecond)
	s.mark("activate-exit")
	return nil
}

func (s *slowTheme) Deactivate(context.Context) error {
	s.mark("deactivate-enter")
	time.Sleep(2 * time.Millisecond)
	s.mark("deactivate-exit")
	return nil
}

func TestConcurrentActivationsAreSerialized(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	var mu sync.Mutex
	log := []string{}
	names := []string{"a", "b", "c"}
	for _, name := range names {
		err := c.Register(Descriptor{
			Name:        name,
			DisplayName: name,
			Impl:        &slowTheme{name: name, mu: &mu, log: &log},
		})
		if err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		name := names[i%len(names)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Activate(ctx, name); err != nil {
				t.Errorf("Activate(%s): %v", name, err)
			}
		}()
	}
	wg.Wait()

	// Every lifecycle call must run to completion before the next begins:
	// the log is strict enter/exit pairs of the same theme and step.
	mu.Lock()
	defer mu.Unlock()
	if len(log)%2 != 0 {
		t.Fatalf("odd number of lifecycle marks: %v", log)
	}
	for i := 0; i < len(log); i += 2 {
		enter, exit := log[i], log[i+1]
		if !strings.HasSuffix(enter, "-enter") {
			t.Fatalf("mark %d = %q, want an enter; log: %v", i, enter, log)
		}
		if exit != strings.TrimSuffix(enter, "-enter")+"-exit" {
			t.Fatalf("lifecycle interleaved at %d: %q then %q; log: %v", i, enter, exit, log)
		}
	}
}
