// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package config loads wld settings from a TOML file and WLD_* environment
// variables, and turns them into the explicit registries and options the
// backends take.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/drm"
	"github.com/gogpu/wld/drm/dumb"
	"github.com/gogpu/wld/drm/intel"
	"github.com/gogpu/wld/drm/nouveau"
	"github.com/gogpu/wld/font"
	"github.com/gogpu/wld/software"
	"github.com/gogpu/wld/wayland"
)

// Backend names.
const (
	BackendSoftware = "software"
	BackendDRM      = "drm"
	BackendWayland  = "wayland"
)

// Config represents the wld configuration.
type Config struct {
	Backend string        `mapstructure:"backend" toml:"backend"`
	DRM     DRMConfig     `mapstructure:"drm" toml:"drm"`
	Wayland WaylandConfig `mapstructure:"wayland" toml:"wayland"`
	Font    FontConfig    `mapstructure:"font" toml:"font"`
	Logging LoggingConfig `mapstructure:"logging" toml:"logging"`
}

type DRMConfig struct {
	Device string `mapstructure:"device" toml:"device"`
	// Dumb forces the dumb driver whatever the device.
	Dumb bool `mapstructure:"dumb" toml:"dumb"`
}

type WaylandConfig struct {
	// Interfaces are tried in order; see wayland.NewContext.
	Interfaces []string `mapstructure:"interfaces" toml:"interfaces"`
	// Override, if set, is the only interface tried.
	Override string `mapstructure:"override" toml:"override,omitempty"`
}

type FontConfig struct {
	Name     string `mapstructure:"name" toml:"name"`
	CacheDir string `mapstructure:"cache_dir" toml:"cache_dir"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" toml:"level"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return &Config{
		Backend: BackendSoftware,
		DRM: DRMConfig{
			Device: "/dev/dri/card0",
		},
		Wayland: WaylandConfig{
			Interfaces: []string{"any"},
		},
		Font: FontConfig{
			Name:     "monospace:pixelsize=14",
			CacheDir: filepath.Join(cacheDir, "wld", "fonts"),
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load loads configuration from file, environment, and defaults. With an
// empty path, config.toml is looked up in the user config directory and
// the working directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "wld"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}
	v.SetConfigType("toml")

	v.SetEnvPrefix("WLD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Historical names.
	_ = v.BindEnv("wayland.override", "WLD_WAYLAND_INTERFACE")
	_ = v.BindEnv("drm.dumb", "WLD_DRM_DUMB")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Font.CacheDir = expandPath(cfg.Font.CacheDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("drm.device", cfg.DRM.Device)
	v.SetDefault("drm.dumb", cfg.DRM.Dumb)
	v.SetDefault("wayland.interfaces", cfg.Wayland.Interfaces)
	v.SetDefault("wayland.override", cfg.Wayland.Override)
	v.SetDefault("font.name", cfg.Font.Name)
	v.SetDefault("font.cache_dir", cfg.Font.CacheDir)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// Save writes the configuration to path as TOML.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	backends := []string{BackendSoftware, BackendDRM, BackendWayland}
	if !slices.Contains(backends, c.Backend) {
		return fmt.Errorf("backend must be one of: %v", backends)
	}
	if c.Backend == BackendDRM && c.DRM.Device == "" {
		return errors.New("drm.device must be set for the drm backend")
	}
	if _, err := c.InterfaceIDs(); err != nil {
		return err
	}
	if _, err := c.override(); err != nil {
		return err
	}
	if _, err := font.ParsePattern(c.Font.Name); err != nil {
		return fmt.Errorf("font.name: %w", err)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

// InterfaceIDs parses the Wayland interface list.
func (c *Config) InterfaceIDs() ([]wayland.InterfaceID, error) {
	ids := make([]wayland.InterfaceID, 0, len(c.Wayland.Interfaces))
	for _, s := range c.Wayland.Interfaces {
		id, err := wayland.ParseInterface(s)
		if err != nil {
			return nil, fmt.Errorf("wayland.interfaces: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Config) override() (wayland.InterfaceID, error) {
	if c.Wayland.Override == "" {
		return wayland.InterfaceNone, nil
	}
	id, err := wayland.ParseInterface(c.Wayland.Override)
	if err != nil {
		return wayland.InterfaceNone, fmt.Errorf("wayland.override: %w", err)
	}
	if id < 0 {
		return wayland.InterfaceNone, fmt.Errorf("wayland.override: %q is not a transport", c.Wayland.Override)
	}
	return id, nil
}

// Drivers returns the DRM drivers in selection order.
func (c *Config) Drivers() []drm.Driver {
	if c.DRM.Dumb {
		return []drm.Driver{dumb.Driver{}}
	}
	return []drm.Driver{intel.Driver{}, nouveau.Driver{}, dumb.Driver{}}
}

// DriverRegistry builds the DRM driver registry.
func (c *Config) DriverRegistry() *drm.Registry {
	return drm.NewRegistry(c.Drivers())
}

// WaylandOptions returns the options for wayland.NewContext.
func (c *Config) WaylandOptions() ([]wayland.Option, error) {
	opts := []wayland.Option{wayland.WithDriverRegistry(c.DriverRegistry())}
	id, err := c.override()
	if err != nil {
		return nil, err
	}
	if id != wayland.InterfaceNone {
		opts = append(opts, wayland.WithOverride(id))
	}
	return opts, nil
}

// OpenDRM opens the configured device and creates a driver context on it.
// The returned close function closes the device after the context is
// destroyed.
func (c *Config) OpenDRM() (wld.Context, func() error, error) {
	k, err := drm.Open(c.DRM.Device)
	if err != nil {
		return nil, nil, err
	}
	ctx, err := c.DriverRegistry().CreateContext(k)
	if err != nil {
		_ = k.Close()
		return nil, nil, err
	}
	return ctx, k.Close, nil
}

// NewContext creates a context for the software or drm backend. Wayland
// contexts need a display and are created with wayland.NewContext.
func (c *Config) NewContext() (wld.Context, func() error, error) {
	switch c.Backend {
	case BackendSoftware:
		return software.NewContext(), func() error { return nil }, nil
	case BackendDRM:
		return c.OpenDRM()
	}
	return nil, nil, &wld.BackendUnavailableError{Name: c.Backend}
}

// FontContext creates a font context caching its index in Font.CacheDir.
func (c *Config) FontContext() *font.Context {
	var opts []font.ContextOption
	if c.Font.CacheDir != "" {
		opts = append(opts, font.WithCacheDir(c.Font.CacheDir))
	}
	return font.NewContext(opts...)
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return l, nil
}

// Logger builds a text logger on stderr at the configured level.
func (c *Config) Logger() *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
