package config

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/taskdeck-io/taskdeck/internal/bus"
	"github.com/taskdeck-io/taskdeck/internal/models"
)

// EventSettingsChanged is published on the bus whenever a settings area is
// saved or the settings file is reloaded from disk.
const EventSettingsChanged = "settings-changed"

// Settings areas reported in SettingsChanged events.
const (
	AreaWindow     = "window"
	AreaAppearance = "appearance"
	AreaTaskSource = "task-source"
	AreaTimer      = "timer"
	AreaTheme      = "theme"
	AreaTelemetry  = "telemetry"
	AreaExternal   = "external" // file changed outside the store
)

// SettingsChanged is the payload of EventSettingsChanged.
type SettingsChanged struct {
	Area string
}

// Store owns the persisted settings and notifies the rest of the process of
// changes through the bus. All mutation goes through the typed Save* methods;
// nothing else writes settings.yaml while the daemon runs.
type Store struct {
	mu       sync.Mutex
	path     string
	bus      *bus.Bus
	settings *models.Settings

	// lastWrite holds the bytes of the store's most recent save, so Reload
	// can tell the file watcher's echo of our own write apart from a real
	// external edit.
	lastWrite []byte
}

// NewStore loads settings from path, falling back to defaults when the file
// doesn't exist.
func NewStore(path string, b *bus.Bus) (*Store, error) {
	settings, err := LoadYAMLOrDefault(path, models.NewSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.Theme.PerTheme == nil {
		settings.Theme.PerTheme = make(map[string]map[string]any)
	}
	return &Store{path: path, bus: b, settings: settings}, nil
}

// Window returns the window settings.
func (s *Store) Window() models.WindowSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Window
}

// SaveWindow persists the window settings.
func (s *Store) SaveWindow(w models.WindowSettings) error {
	return s.save(AreaWindow, func(m *models.Settings) { m.Window = w })
}

// Appearance returns the appearance settings.
func (s *Store) Appearance() models.AppearanceSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Appearance
}

// SaveAppearance persists the appearance settings.
func (s *Store) SaveAppearance(a models.AppearanceSettings) error {
	return s.save(AreaAppearance, func(m *models.Settings) { m.Appearance = a })
}

// TaskSource returns the remote tracker settings.
func (s *Store) TaskSource() models.TaskSourceSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.TaskSource
}

// SaveTaskSource persists the remote tracker settings.
func (s *Store) SaveTaskSource(ts models.TaskSourceSettings) error {
	return s.save(AreaTaskSource, func(m *models.Settings) { m.TaskSource = ts })
}

// Timer returns the timer settings.
func (s *Store) Timer() models.TimerSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Timer
}

// SaveTimer persists the timer settings.
func (s *Store) SaveTimer(t models.TimerSettings) error {
	return s.save(AreaTimer, func(m *models.Settings) { m.Timer = t })
}

// Telemetry returns the telemetry settings.
func (s *Store) Telemetry() models.TelemetrySettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Telemetry
}

// SaveTelemetry persists the telemetry settings.
func (s *Store) SaveTelemetry(t models.TelemetrySettings) error {
	return s.save(AreaTelemetry, func(m *models.Settings) { m.Telemetry = t })
}

// ActiveThemeName returns the persisted theme choice, or empty if none was
// ever saved.
func (s *Store) ActiveThemeName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Theme.Active
}

// SaveActiveThemeName persists the chosen theme name.
func (s *Store) SaveActiveThemeName(name string) error {
	return s.save(AreaTheme, func(m *models.Settings) { m.Theme.Active = name })
}

// ThemeSettings returns a copy of the persisted settings layer for the named
// theme. The layer is partial; callers merge it over compiled defaults.
func (s *Store) ThemeSettings(name string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any)
	for k, v := range s.settings.Theme.PerTheme[name] {
		out[k] = v
	}
	return out
}

// MergeThemeSettings persists patch under the named theme's settings
// namespace, merging over any previously persisted keys.
func (s *Store) MergeThemeSettings(name string, patch map[string]any) error {
	return s.save(AreaTheme, func(m *models.Settings) {
		layer := m.Theme.PerTheme[name]
		if layer == nil {
			layer = make(map[string]any, len(patch))
			m.Theme.PerTheme[name] = layer
		}
		for k, v := range patch {
			layer[k] = v
		}
	})
}

func (s *Store) save(area string, mutate func(*models.Settings)) error {
	s.mu.Lock()
	mutate(s.settings)
	data, err := yaml.Marshal(s.settings)
	if err == nil {
		s.lastWrite = data
		err = WriteFileAtomic(s.path, data)
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	if s.bus != nil {
		s.bus.Publish(EventSettingsChanged, SettingsChanged{Area: area})
	}
	return nil
}

// Reload re-reads the settings file and publishes an external change event.
// Called by the file watcher when settings.yaml changes on disk. When the
// file still holds exactly what the store last wrote, the event is our own
// save echoed back and nothing is published.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to reload settings: %w", err)
	}

	s.mu.Lock()
	if err == nil && bytes.Equal(data, s.lastWrite) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	settings := models.NewSettings()
	if err == nil {
		settings = &models.Settings{}
		if uerr := yaml.Unmarshal(data, settings); uerr != nil {
			return fmt.Errorf("failed to parse settings: %w", uerr)
		}
	}
	if settings.Theme.PerTheme == nil {
		settings.Theme.PerTheme = make(map[string]map[string]any)
	}

	s.mu.Lock()
	s.settings = settings
	s.lastWrite = data
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(EventSettingsChanged, SettingsChanged{Area: AreaExternal})
	}
	return nil
}
