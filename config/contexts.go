// Package config loads daemon settings and the CLI's daemon contexts.
//
// Contexts live in $XDG_CONFIG_HOME/driftwatch/contexts.yaml, falling back to
// ~/.config/driftwatch/contexts.yaml. Each names one driftwatch daemon.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultServer is used when no context is selected.
const DefaultServer = "http://127.0.0.1:8080"

// Context is one daemon the CLI can talk to.
type Context struct {
	Server      string `yaml:"server"`
	Description string `yaml:"description,omitempty"`
}

// Contexts is the on-disk contexts file.
type Contexts struct {
	Current string             `yaml:"current"`
	Daemons map[string]Context `yaml:"daemons"`

	path string
}

func ContextsPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "driftwatch", "contexts.yaml")
}

// LoadContexts reads the contexts file. A missing file yields no contexts.
func LoadContexts() (*Contexts, error) {
	c := &Contexts{path: ContextsPath()}
	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read contexts: %w", err)
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse contexts %s: %w", c.path, err)
		}
	}
	if c.Daemons == nil {
		c.Daemons = make(map[string]Context)
	}
	return c, nil
}

// Save replaces the contexts file through a rename so readers never see a
// partial write.
func (c *Contexts) Save() error {
	if c.path == "" {
		c.path = ContextsPath()
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal contexts: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".contexts-*.yaml")
	if err != nil {
		return fmt.Errorf("write contexts: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write contexts: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write contexts: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace contexts: %w", err)
	}
	return nil
}

// Names returns the context names in sorted order.
func (c *Contexts) Names() []string {
	names := make([]string, 0, len(c.Daemons))
	for name := range c.Daemons {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Server returns the daemon URL for name. An empty name means the current
// context, and DefaultServer when none is selected.
func (c *Contexts) Server(name string) (string, error) {
	if name == "" {
		name = c.Current
	}
	if name == "" {
		return DefaultServer, nil
	}
	d, ok := c.Daemons[name]
	if !ok {
		return "", fmt.Errorf("context %q not found", name)
	}
	return d.Server, nil
}

// Put adds or replaces a context. The server URL is normalized without a
// trailing slash.
func (c *Contexts) Put(name string, d Context) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("context name is required")
	}
	server, err := normalizeServer(d.Server)
	if err != nil {
		return fmt.Errorf("context %q: %w", name, err)
	}
	d.Server = server
	c.Daemons[name] = d
	return nil
}

func (c *Contexts) Select(name string) error {
	if _, ok := c.Daemons[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.Current = name
	return nil
}

// Delete removes a context and clears the selection when it was current.
func (c *Contexts) Delete(name string) error {
	if _, ok := c.Daemons[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Daemons, name)
	if c.Current == name {
		c.Current = ""
	}
	return nil
}

func normalizeServer(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("server must be an http(s) URL, got %q", raw)
	}
	return raw, nil
}
