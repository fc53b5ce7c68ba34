package models

// WindowSettings holds the overlay window geometry and behavior.
type WindowSettings struct {
	X           int     `yaml:"x"`
	Y           int     `yaml:"y"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	Opacity     float64 `yaml:"opacity"`
	AlwaysOnTop bool    `yaml:"always_on_top"`
}

// AppearanceSettings holds appearance settings independent of the theme.
type AppearanceSettings struct {
	ColorMode string `yaml:"color_mode"` // "system" | "light" | "dark"
	FontSize  int    `yaml:"font_size"`
}

// TaskSourceSettings holds remote tracker credentials and defaults.
type TaskSourceSettings struct {
	BaseURL   string `yaml:"base_url"`
	APIToken  string `yaml:"api_token"`
	ProjectID string `yaml:"project_id,omitempty"` // default project filter
}

// TimerSettings holds the interval timer durations and per-phase project
// filters.
type TimerSettings struct {
	WorkMinutes    int    `yaml:"work_minutes"`
	BreakMinutes   int    `yaml:"break_minutes"`
	WorkProjectID  string `yaml:"work_project_id,omitempty"`
	BreakProjectID string `yaml:"break_project_id,omitempty"`
}

// ThemeSettings holds the chosen theme and the persisted per-theme settings
// layer. PerTheme values are partial; compiled defaults are merged underneath
// on every read.
type ThemeSettings struct {
	Active   string                    `yaml:"active"`
	PerTheme map[string]map[string]any `yaml:"per_theme,omitempty"`
}

// TelemetrySettings holds opt-in anonymous usage reporting configuration.
type TelemetrySettings struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key,omitempty"`
	InstallID string `yaml:"install_id,omitempty"`
}

// Settings represents the full application settings.
// This corresponds to ~/.taskdeck/settings.yaml.
type Settings struct {
	Version    int                `yaml:"version"`
	Window     WindowSettings     `yaml:"window"`
	Appearance AppearanceSettings `yaml:"appearance"`
	TaskSource TaskSourceSettings `yaml:"task_source"`
	Timer      TimerSettings      `yaml:"timer"`
	Theme      ThemeSettings      `yaml:"theme"`
	Telemetry  TelemetrySettings  `yaml:"telemetry"`
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Window: WindowSettings{
			X:           40,
			Y:           40,
			Width:       380,
			Height:      120,
			Opacity:     0.92,
			AlwaysOnTop: true,
		},
		Appearance: AppearanceSettings{
			ColorMode: "system",
			FontSize:  14,
		},
		TaskSource: TaskSourceSettings{
			BaseURL: "https://api.todoist.com/rest/v2",
		},
		Timer: TimerSettings{
			WorkMinutes:  25,
			BreakMinutes: 5,
		},
		Theme: ThemeSettings{
			Active:   "",
			PerTheme: make(map[string]map[string]any),
		},
		Telemetry: TelemetrySettings{
			Enabled: false,
		},
	}
}
