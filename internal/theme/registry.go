package theme

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/taskdeck-io/taskdeck/internal/bus"
	"github.com/taskdeck-io/taskdeck/internal/config"
)

// managed tracks a registered theme's lifecycle state.
type managed struct {
	desc        Descriptor
	initialized bool
}

// Coordinator is the theme registry and event dispatcher. It guarantees at
// most one active theme, full deactivation of the previous theme before the
// next activates, and renderer-event filtering to the active theme.
//
// Themes do not subscribe to the bus themselves; the coordinator holds the
// only subscriptions and dispatches to the active theme, so a hidden theme
// cannot react to events.
type Coordinator struct {
	// lifecycle serializes Activate/Deactivate. A second Activate issued
	// while one is in flight blocks until the first completes.
	lifecycle sync.Mutex

	mu      sync.Mutex // guards themes, order, active
	themes  map[string]*managed
	order   []string
	active  *managed
	defName string

	bus      *bus.Bus
	settings *config.Store
	surface  Surface
	unsubs   []func()
}

// NewCoordinator creates a coordinator and subscribes it to every event in
// the forwarded-event table. defaultName is the fallback used by LoadSaved
// when no valid persisted choice exists.
func NewCoordinator(b *bus.Bus, settings *config.Store, surface Surface, defaultName string) *Coordinator {
	c := &Coordinator{
		themes:   make(map[string]*managed),
		defName:  defaultName,
		bus:      b,
		settings: settings,
		surface:  surface,
	}

	for _, bind := range eventTable {
		bind := bind
		c.unsubs = append(c.unsubs, b.Subscribe(bind.name, func(payload any) {
			c.forward(bind, payload)
		}))
	}
	return c
}

// Close removes the coordinator's bus subscriptions.
func (c *Coordinator) Close() {
	for _, unsub := range c.unsubs {
		unsub()
	}
}

// Register adds a theme descriptor. It fails, without side effects, when a
// required field is missing or the name is already registered.
func (c *Coordinator) Register(desc Descriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("theme descriptor missing name")
	}
	if desc.DisplayName == "" {
		return fmt.Errorf("theme %q missing display name", desc.Name)
	}
	if desc.Impl == nil {
		return fmt.Errorf("theme %q missing implementation", desc.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.themes[desc.Name]; exists {
		return fmt.Errorf("theme %q already registered", desc.Name)
	}
	c.themes[desc.Name] = &managed{desc: desc}
	c.order = append(c.order, desc.Name)
	return nil
}

// Themes returns the registered descriptors in registration order.
func (c *Coordinator) Themes() []Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Descriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.themes[name].desc)
	}
	return out
}

// ActiveName returns the active theme's name, or empty when none is active.
func (c *Coordinator) ActiveName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.desc.Name
}

// Activate switches the active theme to name. Any previously active theme is
// fully deactivated first; at no instant are two themes active. On failure
// of the target's initialization or activation no theme is active and the
// error is returned.
func (c *Coordinator) Activate(ctx context.Context, name string) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	m, ok := c.themes[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("theme %q not registered", name)
	}

	if err := c.deactivateCurrent(ctx); err != nil {
		// The old theme is cleared regardless; keep going.
		log.Printf("theme: deactivating previous theme failed: %v", err)
	}

	// Hand the theme its merged settings before Initialize/Activate, so a
	// restarted daemon restores the persisted layer instead of leaving the
	// theme on whatever its live settings happen to hold.
	merged, err := c.ThemeSettings(name)
	if err != nil {
		return err
	}
	if err := m.desc.Impl.UpdateSettings(merged); err != nil {
		return fmt.Errorf("theme %q rejected settings: %w", name, err)
	}

	if !m.initialized {
		if err := m.desc.Impl.Initialize(ctx); err != nil {
			return fmt.Errorf("theme %q failed to initialize: %w", name, err)
		}
		c.mu.Lock()
		m.initialized = true
		c.mu.Unlock()
	}

	if err := m.desc.Impl.Activate(ctx); err != nil {
		return fmt.Errorf("theme %q failed to activate: %w", name, err)
	}

	c.mu.Lock()
	c.active = m
	c.mu.Unlock()

	if err := c.settings.SaveActiveThemeName(name); err != nil {
		log.Printf("theme: failed to persist theme choice: %v", err)
	}

	c.surface.ThemeChanged(ThemeInfo{
		Name:        name,
		DisplayName: m.desc.DisplayName,
		Description: m.desc.Description,
		Settings:    merged,
	})
	return nil
}

// Deactivate deactivates the active theme, if any. The active pointer is
// cleared even when the theme's own deactivation fails, to avoid a stuck
// state; the failure is still reported.
func (c *Coordinator) Deactivate(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.deactivateCurrent(ctx)
}

func (c *Coordinator) deactivateCurrent(ctx context.Context) error {
	c.mu.Lock()
	m := c.active
	c.mu.Unlock()
	if m == nil {
		return nil
	}

	err := m.desc.Impl.Deactivate(ctx)

	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("theme %q failed to deactivate: %w", m.desc.Name, err)
	}
	return nil
}

// LoadSaved activates the persisted theme choice, falling back to the
// default name and then to the first registered theme. Fails only when
// nothing is registered.
func (c *Coordinator) LoadSaved(ctx context.Context) error {
	saved := c.settings.ActiveThemeName()

	c.mu.Lock()
	name := saved
	if _, ok := c.themes[name]; !ok {
		name = c.defName
	}
	if _, ok := c.themes[name]; !ok && len(c.order) > 0 {
		name = c.order[0]
	}
	_, ok := c.themes[name]
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("no themes registered")
	}
	if saved != "" && saved != name {
		log.Printf("theme: saved theme %q not registered, using %q", saved, name)
	}
	return c.Activate(ctx, name)
}

// ThemeSettings returns the merged settings (compiled defaults overlaid with
// the persisted layer) for the named theme, or for the active theme when
// name is empty.
func (c *Coordinator) ThemeSettings(name string) (map[string]any, error) {
	m, err := c.resolve(name)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(m.desc.DefaultSettings))
	for k, v := range m.desc.DefaultSettings {
		merged[k] = v
	}
	for k, v := range c.settings.ThemeSettings(m.desc.Name) {
		merged[k] = v
	}
	return merged, nil
}

// UpdateThemeSettings persists patch under the theme's settings namespace,
// hands the freshly merged settings to the theme, and, when the theme is
// active, notifies the presentation surface.
func (c *Coordinator) UpdateThemeSettings(name string, patch map[string]any) error {
	m, err := c.resolve(name)
	if err != nil {
		return err
	}

	if err := c.settings.MergeThemeSettings(m.desc.Name, patch); err != nil {
		return err
	}

	merged, err := c.ThemeSettings(m.desc.Name)
	if err != nil {
		return err
	}
	if err := m.desc.Impl.UpdateSettings(merged); err != nil {
		return fmt.Errorf("theme %q rejected settings update: %w", m.desc.Name, err)
	}

	if c.ActiveName() == m.desc.Name {
		c.surface.ThemeSettingsUpdated(m.desc.Name, merged)
	}
	return nil
}

// HandleRendererEvent routes a display-surface-originated event to the
// active theme. Events addressed to a stale or foreign theme name are logged
// and dropped.
func (c *Coordinator) HandleRendererEvent(e RendererEvent) {
	c.mu.Lock()
	m := c.active
	c.mu.Unlock()

	if m == nil || m.desc.Name != e.ThemeName {
		log.Printf("theme: dropping renderer event %q for inactive theme %q", e.EventName, e.ThemeName)
		return
	}
	if h, ok := m.desc.Impl.(RendererEventHandler); ok {
		h.OnRendererEvent(e)
	}
}

// resolve maps a theme name (or empty, for the active theme) to its entry.
func (c *Coordinator) resolve(name string) (*managed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == "" {
		if c.active == nil {
			return nil, fmt.Errorf("no active theme")
		}
		return c.active, nil
	}
	m, ok := c.themes[name]
	if !ok {
		return nil, fmt.Errorf("theme %q not registered", name)
	}
	return m, nil
}

// forward dispatches one domain event to the active theme through the fixed
// table, falling back to the theme's generic handler when the specific one
// is missing, then relays the payload to the presentation surface.
func (c *Coordinator) forward(bind binding, payload any) {
	c.mu.Lock()
	m := c.active
	c.mu.Unlock()

	if m != nil {
		if !bind.dispatch(m.desc.Impl, payload) {
			if fb, ok := m.desc.Impl.(Fallback); ok {
				fb.OnEvent(bind.name, payload)
			}
		}
	}

	if c.surface != nil {
		c.surface.ForwardEvent(bind.name, payload)
	}
}
