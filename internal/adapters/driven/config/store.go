// Package config loads tool configuration from TOML files. A project
// file named flake-edit.toml or .flake-edit.toml is searched upward
// from the working directory; the user-level file under
// ~/.config/flake-edit/config.toml applies when no project file wins.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/core/ports/driven"
	"github.com/a-kenji/flake-edit/internal/logger"
)

// projectFiles are the recognized project-level file names, in order
// of preference.
var projectFiles = []string{"flake-edit.toml", ".flake-edit.toml"}

// fileConfig is the TOML schema.
type fileConfig struct {
	Ignore          []string            `toml:"ignore"`
	Aliases         map[string][]string `toml:"aliases"`
	ChannelPrefixes []string            `toml:"channel_prefixes"`
	DefaultStyle    string              `toml:"default_style"`
	Ordering        string              `toml:"ordering"`
	NonInteractive  bool                `toml:"non_interactive"`
}

var _ driven.ConfigStore = (*Store)(nil)

// Store discovers and decodes the configuration file.
type Store struct {
	// StartDir is where the upward search begins, the working
	// directory when empty.
	StartDir string
}

// Load returns the effective configuration. A missing file is not an
// error, the defaults apply.
func (s *Store) Load() (*domain.Config, error) {
	path, err := s.discover()
	if err != nil {
		return nil, err
	}
	cfg := domain.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	logger.Debug("config: loading %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Ignore = fc.Ignore
	cfg.Aliases = fc.Aliases
	cfg.ChannelPrefixes = fc.ChannelPrefixes
	cfg.NonInteractive = fc.NonInteractive
	switch fc.DefaultStyle {
	case "":
	case string(domain.StyleDotted):
		cfg.Style = domain.StyleDotted
	case string(domain.StyleNested):
		cfg.Style = domain.StyleNested
	default:
		return nil, fmt.Errorf("config %s: unknown default_style %q", path, fc.DefaultStyle)
	}
	switch fc.Ordering {
	case "":
	case string(domain.OrderEnd):
		cfg.Ordering = domain.OrderEnd
	case string(domain.OrderAlphabetical):
		cfg.Ordering = domain.OrderAlphabetical
	default:
		return nil, fmt.Errorf("config %s: unknown ordering %q", path, fc.Ordering)
	}
	return cfg, nil
}

// discover walks from StartDir to the filesystem root looking for a
// project file, then falls back to the user-level file.
func (s *Store) discover() (string, error) {
	dir := s.StartDir
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	for {
		for _, name := range projectFiles {
			candidate := filepath.Join(dir, name)
			if fileExists(candidate) {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	confDir, err := os.UserConfigDir()
	if err != nil {
		return "", nil
	}
	user := filepath.Join(confDir, "flake-edit", "config.toml")
	if fileExists(user) {
		return user, nil
	}
	return "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Debug("config: stat %s: %v", path, err)
		}
		return false
	}
	return !info.IsDir()
}
