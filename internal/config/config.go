// Package config loads and saves the classmate YAML configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fentz26/classmate/internal/connectors/localexec"
	"github.com/fentz26/classmate/internal/engine"
	"github.com/fentz26/classmate/internal/store/redisstore"
	"github.com/fentz26/classmate/internal/timetable"
	"github.com/fentz26/classmate/internal/writeback"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config holds the daemon and CLI configuration.
type Config struct {
	// Listen is the API listen address.
	Listen string `yaml:"listen"`
	// DB is the SQLite database path.
	DB string `yaml:"db"`
	// Store selects the persistence backend.
	Store StoreConfig `yaml:"store"`
	// Catalog overrides the daily time slots.
	Catalog timetable.Catalog `yaml:"catalog"`
	// Aliases extend the OCR misread table.
	Aliases map[string]string `yaml:"aliases,omitempty"`
	// Attendance sets the target used for standings.
	Attendance AttendanceConfig `yaml:"attendance"`
	// Placement controls where moved tasks land.
	Placement PlacementConfig `yaml:"placement"`
	// CancelPolicy is keep-class or free-class.
	CancelPolicy string `yaml:"cancel_policy"`
	// Recognizer is the external OCR command.
	Recognizer localexec.Config `yaml:"recognizer"`
	// Writeback tunes the background writer.
	Writeback writeback.Config `yaml:"writeback"`
	// Log configures the daemon logger.
	Log LogConfig `yaml:"log"`
}

// StoreConfig selects and configures the store adapter.
type StoreConfig struct {
	Driver string            `yaml:"driver"`
	Redis  redisstore.Config `yaml:"redis"`
}

// AttendanceConfig holds attendance policy settings.
type AttendanceConfig struct {
	Target float64 `yaml:"target"`
}

// PlacementConfig holds task placement settings.
type PlacementConfig struct {
	Policy       string `yaml:"policy"`
	DefaultStart string `yaml:"default_start"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:  "127.0.0.1:7567",
		DB:      defaultDBPath(),
		Store:   StoreConfig{Driver: DriverSQLite, Redis: redisstore.DefaultConfig()},
		Catalog: timetable.DefaultCatalog(),
		Attendance: AttendanceConfig{
			Target: engine.DefaultTarget,
		},
		Placement: PlacementConfig{
			Policy:       string(engine.PlaceFirstFitThenAppend),
			DefaultStart: engine.DefaultAppendStart,
		},
		CancelPolicy: string(engine.CancelKeepClass),
		Recognizer:   localexec.DefaultConfig(),
		Writeback:    *writeback.DefaultConfig(),
		Log:          LogConfig{Level: "info", Format: "text"},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".classmate", "classmate.db")
	}
	return filepath.Join(home, ".classmate", "classmate.db")
}

// HomePath returns ~/.classmate/config.yaml.
func HomePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	return filepath.Join(home, ".classmate", "config.yaml"), nil
}

// LoadConfig loads configuration from a YAML file. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromHome loads configuration from ~/.classmate/config.yaml.
func LoadConfigFromHome() (*Config, error) {
	path, err := HomePath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// SaveConfig saves configuration to a YAML file, creating parent directories if needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.DB == "" {
			return fmt.Errorf("db path is required for the sqlite driver")
		}
	case DriverRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("invalid store driver %q, must be: sqlite or redis", c.Store.Driver)
	}

	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if c.Attendance.Target <= 0 || c.Attendance.Target >= 100 {
		return fmt.Errorf("attendance.target must be between 0 and 100, got %v", c.Attendance.Target)
	}
	if _, err := engine.ParsePlacementPolicy(c.Placement.Policy); err != nil {
		return err
	}
	if c.Placement.DefaultStart != "" {
		if _, err := timetable.ParseClock(c.Placement.DefaultStart); err != nil {
			return fmt.Errorf("placement.default_start: %w", err)
		}
	}
	if _, err := engine.ParseCancelPolicy(c.CancelPolicy); err != nil {
		return err
	}
	if c.Recognizer.Command == "" {
		return fmt.Errorf("recognizer.command is required")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be: text or json", c.Log.Format)
	}
	return nil
}

// EngineOptions returns the engine options the configuration selects.
func (c *Config) EngineOptions() engine.Options {
	placement, _ := engine.ParsePlacementPolicy(c.Placement.Policy)
	cancel, _ := engine.ParseCancelPolicy(c.CancelPolicy)
	return engine.Options{
		Placement:    placement,
		Cancel:       cancel,
		DefaultStart: c.Placement.DefaultStart,
	}
}

// NewLogger builds the structured logger described by the configuration.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
}
