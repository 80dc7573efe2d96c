// Package config persists, per command category, the last-used destination
// root so that `-r` can be omitted on subsequent invocations. It is lazily
// loaded on first use and saved only on explicit mutation, mirroring the
// narrow get/set API spec.md §9 calls for.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Category names one of the command groups that remembers its own
// destination: mame, sl, nointro, redump, extras.
type Category string

const (
	CategoryMAME    Category = "mame"
	CategorySL      Category = "sl"
	CategoryNoIntro Category = "nointro"
	CategoryRedump  Category = "redump"
	CategoryExtras  Category = "extras"
)

// document is the on-disk YAML shape. Destinations holds the plain
// per-category root. SoftwareLists holds sl's extra per-list sub-paths,
// keyed by software list name, since a single `sl` destination root isn't
// enough to disambiguate which list a game belongs under.
type document struct {
	Destinations  map[Category]string `yaml:"destinations"`
	SoftwareLists map[string]string   `yaml:"software_lists,omitempty"`
	DatRoots      map[string]string   `yaml:"dat_roots,omitempty"` // nointro/redump, keyed by dat name
}

// Config is the lazily-loaded, save-on-mutation destination store.
type Config struct {
	mu   sync.Mutex
	path string
	doc  *document // nil until first Load
}

// New returns a Config backed by path. path is not read until the first
// call that needs it (Get, Set and the other accessors); a missing file is treated as "not yet configured", never an
// error.
func New(path string) *Config {
	return &Config{path: path}
}

// DefaultPath resolves the config file location under the user's standard
// config directory, matching spec.md §6.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "romkeep", "config.yaml"), nil
}

func (c *Config) ensureLoaded() error {
	if c.doc != nil {
		return nil
	}
	doc := &document{Destinations: map[Category]string{}}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.doc = doc
			return nil
		}
		return fmt.Errorf("config: read %q: %w", c.path, err)
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("config: parse %q: %w", c.path, err)
	}
	if doc.Destinations == nil {
		doc.Destinations = map[Category]string{}
	}
	c.doc = doc
	return nil
}

// Get returns the remembered destination for category, and whether one has
// been set.
func (c *Config) Get(category Category) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return "", false, err
	}
	dest, ok := c.doc.Destinations[category]
	return dest, ok && dest != "", nil
}

// Set remembers dest as category's destination and saves immediately.
func (c *Config) Set(category Category, dest string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	c.doc.Destinations[category] = dest
	return c.save()
}

// GetSoftwareList returns the remembered destination sub-path for a
// specific software list name, under the sl category.
func (c *Config) GetSoftwareList(listName string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return "", false, err
	}
	dest, ok := c.doc.SoftwareLists[listName]
	return dest, ok && dest != "", nil
}

// SetSoftwareList remembers dest for a specific software list name.
func (c *Config) SetSoftwareList(listName, dest string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	if c.doc.SoftwareLists == nil {
		c.doc.SoftwareLists = map[string]string{}
	}
	c.doc.SoftwareLists[listName] = dest
	return c.save()
}

// GetDatRoot returns the remembered destination for a nointro/redump dat
// name.
func (c *Config) GetDatRoot(datName string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return "", false, err
	}
	dest, ok := c.doc.DatRoots[datName]
	return dest, ok && dest != "", nil
}

// SetDatRoot remembers dest for a nointro/redump dat name.
func (c *Config) SetDatRoot(datName, dest string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	if c.doc.DatRoots == nil {
		c.doc.DatRoots = map[string]string{}
	}
	c.doc.DatRoots[datName] = dest
	return c.save()
}

// save must be called with mu held.
func (c *Config) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("config: create %q: %w", filepath.Dir(c.path), err)
	}
	data, err := yaml.Marshal(c.doc)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("config: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: finalize %q: %w", c.path, err)
	}
	return nil
}

// Resolve implements spec.md §6's destination lookup order: explicit flag
// > remembered value > current directory.
func Resolve(flagValue string, category Category, cfg *Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg != nil {
		if dest, ok, err := cfg.Get(category); err != nil {
			return "", err
		} else if ok {
			return dest, nil
		}
	}
	return os.Getwd()
}
