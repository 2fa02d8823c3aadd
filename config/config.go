// Package config loads server settings from an optional YAML file and
// the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Host           string   `yaml:"host"`
	Port           string   `yaml:"port"`
	DataDir        string   `yaml:"data_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// LegacyPath points at a local-storage dump to migrate on startup.
	// Empty disables the migration check.
	LegacyPath string `yaml:"legacy_path"`

	Store StoreConfig `yaml:"store"`
	Label LabelConfig `yaml:"label"`
	Log   LogConfig   `yaml:"log"`
}

type StoreConfig struct {
	// Backend is one of json, sqlite, postgres, memory.
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type LabelConfig struct {
	// BaseHost prefixes label URLs, e.g. "http://192.168.1.50:8080".
	// Empty means "the origin the request came in on".
	BaseHost string `yaml:"base_host"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           "8080",
		DataDir:        "./data",
		AllowedOrigins: []string{"*"},
		Store:          StoreConfig{Backend: "json"},
		Log:            LogConfig{Level: "info", Format: "text"},
	}
}

// Load returns the defaults, overlaid with the YAML file at path (if
// path is non-empty) and then with environment variables.
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	env := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	env("HOST", &cfg.Host)
	env("PORT", &cfg.Port)
	env("DATA_DIR", &cfg.DataDir)
	env("STORE_BACKEND", &cfg.Store.Backend)
	env("POSTGRES_DSN", &cfg.Store.PostgresDSN)
	env("LEGACY_PATH", &cfg.LegacyPath)
	env("LABEL_BASE_HOST", &cfg.Label.BaseHost)
	env("LOG_LEVEL", &cfg.Log.Level)
	env("LOG_FORMAT", &cfg.Log.Format)
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case "json", "sqlite", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port: must not be empty"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format: want text or json, got %q", f))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
