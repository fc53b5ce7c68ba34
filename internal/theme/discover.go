package theme

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Factory constructs a fresh theme implementation. Builtin renderers expose
// factories so a manifest can re-skin them under a new name.
type Factory func() Theme

// Manifest declares a theme in ~/.taskdeck/themes/<name>.yaml. It refers to
// a compiled-in renderer by name; manifests are a convenience layered over
// explicit registration, not a separate code-loading path.
type Manifest struct {
	Name            string         `yaml:"name"`
	DisplayName     string         `yaml:"display_name"`
	Description     string         `yaml:"description"`
	Renderer        string         `yaml:"renderer"`
	DefaultSettings map[string]any `yaml:"default_settings"`
}

// Discover scans dir for theme manifests and registers one descriptor per
// valid manifest. A malformed or unloadable manifest is logged and skipped;
// it never aborts discovery of the rest. Returns how many were registered.
func (c *Coordinator) Discover(dir string, factories map[string]Factory) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("theme: cannot read manifest dir %s: %v", dir, err)
		}
		return 0
	}

	registered := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := c.registerManifest(path, factories); err != nil {
			log.Printf("theme: skipping manifest %s: %v", entry.Name(), err)
			continue
		}
		registered++
	}
	return registered
}

func (c *Coordinator) registerManifest(path string, factories map[string]Factory) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}

	factory, ok := factories[m.Renderer]
	if !ok {
		return fmt.Errorf("unknown renderer %q", m.Renderer)
	}

	return c.Register(Descriptor{
		Name:            m.Name,
		DisplayName:     m.DisplayName,
		Description:     m.Description,
		DefaultSettings: m.DefaultSettings,
		Impl:            factory(),
	})
}
