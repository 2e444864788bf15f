package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/singleflight"
)

// ConfigurationError reports a failed project configuration resolution.
// The previously resolved configuration stays in effect.
type ConfigurationError struct {
	Root string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %v", e.Root, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Cache holds the resolved project configuration. Get resolves lazily;
// Reload invalidates wholesale. Concurrent reloads are collapsed into one
// resolution.
type Cache struct {
	mu       sync.RWMutex
	group    singleflight.Group
	root     string
	settings Settings
	current  *Configuration
}

// NewCache creates a Cache rooted at the workspace directory.
func NewCache(root string, settings Settings) *Cache {
	return &Cache{
		root:     root,
		settings: settings,
	}
}

// Settings returns the current server settings.
func (c *Cache) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// UpdateSettings replaces the server settings. The resolved project file
// stays valid, so no re-resolution happens.
func (c *Cache) UpdateSettings(settings Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = settings
	if c.current != nil {
		next := *c.current
		next.Settings = settings
		c.current = &next
	}
}

// Get returns the current configuration, resolving it on first use.
func (c *Cache) Get() (*Configuration, error) {
	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()

	if current != nil {
		return current, nil
	}
	return c.Reload()
}

// Reload re-resolves the project configuration. On failure the previous
// configuration remains in effect and a *ConfigurationError is returned.
func (c *Cache) Reload() (*Configuration, error) {
	v, err, _ := c.group.Do("reload", func() (any, error) {
		resolved, err := c.resolve()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.current = resolved
		c.mu.Unlock()
		return resolved, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Configuration), nil
}

func (c *Cache) resolve() (*Configuration, error) {
	projectFile, err := findProjectFile(c.root)
	if err != nil {
		return nil, &ConfigurationError{Root: c.root, Err: err}
	}

	c.mu.RLock()
	settings := c.settings
	c.mu.RUnlock()

	return &Configuration{
		ResolvedAt:  time.Now(),
		Root:        c.root,
		ProjectFile: projectFile,
		BaseDir:     filepath.Dir(projectFile),
		Settings:    settings,
	}, nil
}

// findProjectFile walks up from the given directory to the nearest
// pyproject.toml that carries a [tool.pysen] or [tool.jiro] section.
func findProjectFile(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		path := filepath.Join(current, "pyproject.toml")
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			ok, err := hasToolSection(path)
			if err != nil {
				return "", err
			}
			if ok {
				return path, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no pysen project found above %s", dir)
		}
		current = parent
	}
}

func hasToolSection(path string) (bool, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	tool, ok := raw["tool"].(map[string]any)
	if !ok {
		return false, nil
	}
	for _, section := range []string{"pysen", "jiro"} {
		if _, ok := tool[section]; ok {
			return true, nil
		}
	}
	return false, nil
}
