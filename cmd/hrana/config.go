package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is one named connection in the config file. Every field is
// optional; flags and environment variables override whatever is set here.
type Profile struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token,omitempty"`
	Mode    string `yaml:"mode,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

// Config is the on-disk shape of ~/.config/hrana/config.yml:
//
//	default: prod
//	profiles:
//	  prod:
//	    url: https://db.example.turso.io
//	    token: eyJhbGc...
//	    mode: bigint
//	    timeout: 15s
//	  local:
//	    url: http://127.0.0.1:8080
type Config struct {
	Default  string             `yaml:"default,omitempty"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// defaultConfigPath resolves the per-user config file location. An empty
// string means the platform has no config directory; callers treat that the
// same as a missing file.
func defaultConfigPath() string {
	if path := os.Getenv("HRANA_CONFIG"); path != "" {
		return path
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "hrana", "config.yml")
}

func loadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Profile returns the named profile, or the config's default profile when
// name is empty.
func (c *Config) Profile(name string) (*Profile, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" {
		return nil, fmt.Errorf("config file sets no default profile")
	}
	p, ok := c.Profiles[name]
	if !ok {
		names := make([]string, 0, len(c.Profiles))
		for n := range c.Profiles {
			names = append(names, n)
		}
		sort.Strings(names)
		if len(names) == 0 {
			return nil, fmt.Errorf("profile %q not found: config file defines no profiles", name)
		}
		return nil, fmt.Errorf("profile %q not found (have: %s)", name, strings.Join(names, ", "))
	}
	return &p, nil
}
