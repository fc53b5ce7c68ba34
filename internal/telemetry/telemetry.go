// Package telemetry reports anonymous usage events. Reporting is strictly
// opt-in; with telemetry disabled in settings every call is a no-op.
package telemetry

import (
	"log"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"

	"github.com/taskdeck-io/taskdeck/internal/config"
	"github.com/taskdeck-io/taskdeck/internal/models"
)

// Event names.
const (
	EventDaemonStarted     = "daemon_started"
	EventThemeActivated    = "theme_activated"
	EventPomodoroCompleted = "pomodoro_completed"
	EventTaskCompleted     = "task_completed"
)

// Reporter sends usage events to PostHog.
type Reporter struct {
	client    posthog.Client
	installID string
}

// New creates a reporter from the telemetry settings. Returns a disabled
// reporter (nil client) when telemetry is off or no API key is configured.
// A missing install ID is generated and persisted so events from one
// installation correlate without identifying the user.
func New(store *config.Store) *Reporter {
	settings := store.Telemetry()
	if !settings.Enabled || settings.APIKey == "" {
		return &Reporter{}
	}

	if settings.InstallID == "" {
		settings.InstallID = uuid.NewString()
		if err := store.SaveTelemetry(settings); err != nil {
			log.Printf("telemetry: failed to persist install id: %v", err)
		}
	}

	client, err := posthog.NewWithConfig(settings.APIKey, posthog.Config{
		Endpoint: "https://us.i.posthog.com",
	})
	if err != nil {
		log.Printf("telemetry: disabled, client init failed: %v", err)
		return &Reporter{}
	}
	return &Reporter{client: client, installID: settings.InstallID}
}

// Enabled reports whether events will actually be sent.
func (r *Reporter) Enabled() bool {
	return r.client != nil
}

// Capture enqueues one event. Safe to call on a disabled reporter.
func (r *Reporter) Capture(event string, props map[string]any) {
	if r.client == nil {
		return
	}

	properties := posthog.NewProperties()
	for k, v := range props {
		properties.Set(k, v)
	}
	err := r.client.Enqueue(posthog.Capture{
		DistinctId: r.installID,
		Event:      event,
		Properties: properties,
	})
	if err != nil {
		log.Printf("telemetry: failed to enqueue %s: %v", event, err)
	}
}

// Close flushes pending events.
func (r *Reporter) Close() {
	if r.client == nil {
		return
	}
	if err := r.client.Close(); err != nil {
		log.Printf("telemetry: close: %v", err)
	}
}

// Sanitize strips anything user-identifying before capture. Only counts and
// enum-like values leave the machine.
func Sanitize(state models.TimerState) map[string]any {
	return map[string]any{
		"work_minutes":  state.WorkMinutes,
		"break_minutes": state.BreakMinutes,
		"was_break":     state.IsBreak,
	}
}
