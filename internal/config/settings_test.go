package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/taskdeck-io/taskdeck/internal/bus"
	"github.com/taskdeck-io/taskdeck/internal/models"
)

func newTestStore(t *testing.T) (*Store, *bus.Bus) {
	t.Helper()
	b := bus.New()
	path := filepath.Join(t.TempDir(), SettingsFileName)
	store, err := NewStore(path, b)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, b
}

func TestDefaultsWhenFileMissing(t *testing.T) {
	store, _ := newTestStore(t)

	timer := store.Timer()
	if timer.WorkMinutes != 25 || timer.BreakMinutes != 5 {
		t.Errorf("timer defaults = %d/%d, want 25/5", timer.WorkMinutes, timer.BreakMinutes)
	}
	if store.ActiveThemeName() != "" {
		t.Errorf("default active theme = %q, want empty", store.ActiveThemeName())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	b := bus.New()
	path := filepath.Join(t.TempDir(), SettingsFileName)

	store, err := NewStore(path, b)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.SaveTimer(models.TimerSettings{WorkMinutes: 50, BreakMinutes: 10}); err != nil {
		t.Fatalf("SaveTimer: %v", err)
	}

	reopened, err := NewStore(path, b)
	if err != nil {
		t.Fatalf("NewStore (reopen): %v", err)
	}
	timer := reopened.Timer()
	if timer.WorkMinutes != 50 || timer.BreakMinutes != 10 {
		t.Errorf("reloaded timer = %d/%d, want 50/10", timer.WorkMinutes, timer.BreakMinutes)
	}
}

func TestSavePublishesAreaEvent(t *testing.T) {
	store, b := newTestStore(t)

	var areas []string
	b.Subscribe(EventSettingsChanged, func(p any) {
		areas = append(areas, p.(SettingsChanged).Area)
	})

	if err := store.SaveWindow(models.WindowSettings{X: 1, Y: 2}); err != nil {
		t.Fatalf("SaveWindow: %v", err)
	}
	if err := store.SaveTaskSource(models.TaskSourceSettings{APIToken: "tok"}); err != nil {
		t.Fatalf("SaveTaskSource: %v", err)
	}

	want := []string{AreaWindow, AreaTaskSource}
	if len(areas) != len(want) {
		t.Fatalf("got %d events, want %d", len(areas), len(want))
	}
	for i := range want {
		if areas[i] != want[i] {
			t.Errorf("event %d area = %q, want %q", i, areas[i], want[i])
		}
	}
}

func TestThemeSettingsMerge(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.MergeThemeSettings("farm", map[string]any{"sound": true, "rows": 3}); err != nil {
		t.Fatalf("MergeThemeSettings: %v", err)
	}
	if err := store.MergeThemeSettings("farm", map[string]any{"rows": 5}); err != nil {
		t.Fatalf("MergeThemeSettings (patch): %v", err)
	}

	got := store.ThemeSettings("farm")
	if got["sound"] != true {
		t.Errorf("sound = %v, want true", got["sound"])
	}
	if got["rows"] != 5 {
		t.Errorf("rows = %v, want 5", got["rows"])
	}

	// Layers are theme-scoped.
	if len(store.ThemeSettings("minimal")) != 0 {
		t.Errorf("minimal layer unexpectedly populated: %v", store.ThemeSettings("minimal"))
	}
}

func TestThemeSettingsReturnsCopy(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.MergeThemeSettings("farm", map[string]any{"rows": 3}); err != nil {
		t.Fatalf("MergeThemeSettings: %v", err)
	}

	got := store.ThemeSettings("farm")
	got["rows"] = 99

	if store.ThemeSettings("farm")["rows"] != 3 {
		t.Error("mutating the returned map leaked into the store")
	}
}

func TestReloadSkipsOwnWrite(t *testing.T) {
	store, b := newTestStore(t)

	if err := store.SaveWindow(models.WindowSettings{X: 7, Y: 9}); err != nil {
		t.Fatalf("SaveWindow: %v", err)
	}

	var external int
	b.Subscribe(EventSettingsChanged, func(p any) {
		if p.(SettingsChanged).Area == AreaExternal {
			external++
		}
	})

	// What the watcher does when our own save comes back as a file event.
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if external != 0 {
		t.Fatalf("own write reloaded as %d external change(s), want 0", external)
	}
	if w := store.Window(); w.X != 7 || w.Y != 9 {
		t.Errorf("window after reload = %+v, want 7/9", w)
	}
}

func TestReloadPublishesExternalEdit(t *testing.T) {
	b := bus.New()
	path := filepath.Join(t.TempDir(), SettingsFileName)
	store, err := NewStore(path, b)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.SaveTimer(models.TimerSettings{WorkMinutes: 25, BreakMinutes: 5}); err != nil {
		t.Fatalf("SaveTimer: %v", err)
	}

	var areas []string
	b.Subscribe(EventSettingsChanged, func(p any) {
		areas = append(areas, p.(SettingsChanged).Area)
	})

	// Hand-edit the file the way a user would.
	edited := models.NewSettings()
	edited.Timer = models.TimerSettings{WorkMinutes: 45, BreakMinutes: 5}
	if err := SaveYAML(path, edited); err != nil {
		t.Fatalf("SaveYAML: %v", err)
	}

	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if len(areas) != 1 || areas[0] != AreaExternal {
		t.Fatalf("areas = %v, want [external]", areas)
	}
	if got := store.Timer().WorkMinutes; got != 45 {
		t.Errorf("work minutes after external edit = %d, want 45", got)
	}

	// The edited content is now the known state; a second echo is quiet.
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload (echo): %v", err)
	}
	if len(areas) != 1 {
		t.Fatalf("echo of known content published again: %v", areas)
	}
}

func TestWatcherIgnoresOwnSaves(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	b := bus.New()
	path, err := GlobalSettingsFile()
	if err != nil {
		t.Fatalf("GlobalSettingsFile: %v", err)
	}
	if err := EnsureGlobalDir(); err != nil {
		t.Fatalf("EnsureGlobalDir: %v", err)
	}
	store, err := NewStore(path, b)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	areaCh := make(chan string, 16)
	b.Subscribe(EventSettingsChanged, func(p any) {
		areaCh <- p.(SettingsChanged).Area
	})

	w, err := NewWatcher(store)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := store.SaveWindow(models.WindowSettings{X: 1, Y: 2}); err != nil {
		t.Fatalf("SaveWindow: %v", err)
	}

	// The save itself publishes its area; the watcher's echo must not add
	// an external event on top.
	deadline := time.After(4 * reloadDebounce)
	var areas []string
collect:
	for {
		select {
		case a := <-areaCh:
			areas = append(areas, a)
		case <-deadline:
			break collect
		}
	}
	if len(areas) != 1 || areas[0] != AreaWindow {
		t.Fatalf("areas = %v, want [window]", areas)
	}

	// A real external edit still comes through.
	external := models.NewSettings()
	external.Window = models.WindowSettings{X: 99, Y: 2}
	if err := SaveYAML(path, external); err != nil {
		t.Fatalf("SaveYAML: %v", err)
	}
	select {
	case a := <-areaCh:
		if a != AreaExternal {
			t.Fatalf("area = %q, want external", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("external edit never reloaded")
	}
}
