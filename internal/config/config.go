// Package config loads studio server configuration from flags, environment
// variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/estudio-ia/studio-server/internal/domain"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Server  ServerConfig
	Export  ExportConfig
	Events  EventsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level      string
	Format     string // json or pretty; empty picks by environment
	File       string // optional rotated log file
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// StorageConfig selects and locates the job store.
type StorageConfig struct {
	Backend  string
	DataPath string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// ExportConfig tunes the export orchestrator.
type ExportConfig struct {
	// MaxConcurrent is the number of jobs that may be processing at once (default: 3).
	MaxConcurrent int
	// OutputDir is the directory output paths are built under (default: /exports).
	OutputDir string
	// StepDelayScale multiplies simulated step delays; 0 disables them.
	StepDelayScale float64
	// PhaseDeadlines bounds individual phases. Phases absent from the map run unbounded.
	PhaseDeadlines map[domain.ExportPhase]time.Duration
	// PresetsFile is an optional JSON file of custom platform presets.
	PresetsFile string
}

// EventsConfig configures the optional Redis event mirror.
type EventsConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
}

// Flags carries command-line values. Empty strings mean "not set".
type Flags struct {
	EnvFile        string
	Env            string
	LogLevel       string
	LogFormat      string
	LogFile        string
	StorageBackend string
	DataPath       string
	Port           string
	CORSOrigins    string
	MaxConcurrent  string
	StepDelayScale string
	PhaseDeadlines string
	PresetsFile    string
	RedisAddr      string
}

// LoadConfig builds a Config with precedence:
// 1. Command-line flags.
// 2. Environment variables.
// 3. .env file.
// 4. Defaults.
func LoadConfig(f Flags) (*Config, error) {
	envFile := f.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables already present in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %q: %w", envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: value(f.Env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:      value(f.LogLevel, "LOG_LEVEL", "info"),
			Format:     value(f.LogFormat, "LOG_FORMAT", ""),
			File:       value(f.LogFile, "LOG_FILE", ""),
			MaxSizeMB:  intValue("", "LOG_MAX_SIZE_MB", 100),
			MaxBackups: intValue("", "LOG_MAX_BACKUPS", 5),
			MaxAgeDays: intValue("", "LOG_MAX_AGE_DAYS", 28),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(value(f.StorageBackend, "STORAGE_BACKEND", BackendBadger)),
			DataPath: value(f.DataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:           value(f.Port, "SERVER_PORT", "8080"),
			CORSOrigins:    splitList(value(f.CORSOrigins, "CORS_ORIGINS", "*")),
			RateLimitBurst: intValue("", "RATE_LIMIT_BURST", 40),
		},
		Export: ExportConfig{
			MaxConcurrent: intValue(f.MaxConcurrent, "EXPORT_MAX_CONCURRENT", 3),
			OutputDir:     value("", "EXPORT_OUTPUT_DIR", "/exports"),
			PresetsFile:   value(f.PresetsFile, "EXPORT_PRESETS_FILE", ""),
		},
		Events: EventsConfig{
			RedisAddr:     value(f.RedisAddr, "REDIS_ADDR", ""),
			RedisPassword: value("", "REDIS_PASSWORD", ""),
			RedisDB:       intValue("", "REDIS_DB", 0),
			RedisChannel:  value("", "REDIS_CHANNEL", "studio:export-events"),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = durationValue("", "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	// Write timeout stays off by default so SSE streams are not cut; the SSE handler sets its own deadlines.
	if cfg.Server.WriteTimeout, err = durationValue("", "SERVER_WRITE_TIMEOUT", "0s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = durationValue("", "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.Server.RateLimitRPS, err = floatValue("", "RATE_LIMIT_RPS", "20"); err != nil {
		return nil, err
	}
	if cfg.Export.StepDelayScale, err = floatValue(f.StepDelayScale, "EXPORT_STEP_DELAY_SCALE", "1"); err != nil {
		return nil, err
	}
	if cfg.Export.PhaseDeadlines, err = ParsePhaseDeadlines(value(f.PhaseDeadlines, "EXPORT_PHASE_TIMEOUTS", "")); err != nil {
		return nil, err
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if cfg.Export.PresetsFile != "" {
		if cfg.Export.PresetsFile, err = expandPath(cfg.Export.PresetsFile, ""); err != nil {
			return nil, fmt.Errorf("invalid presets file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"development", "staging", "production"}, c.App.Environment) {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logger.Level)) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	if c.Logger.Format != "" && c.Logger.Format != "json" && c.Logger.Format != "pretty" {
		return fmt.Errorf("invalid log format: %s (must be json or pretty)", c.Logger.Format)
	}
	if c.Storage.Backend != BackendBadger && c.Storage.Backend != BackendSQLite {
		return fmt.Errorf("invalid storage backend: %s (must be badger or sqlite)", c.Storage.Backend)
	}
	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}
	if c.Export.MaxConcurrent < 1 {
		return fmt.Errorf("export max concurrent must be at least 1, got %d", c.Export.MaxConcurrent)
	}
	if c.Export.StepDelayScale < 0 {
		return fmt.Errorf("export step delay scale cannot be negative, got %g", c.Export.StepDelayScale)
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst < 1 {
		return errors.New("rate limit must allow at least one request")
	}
	return nil
}

// ParsePhaseDeadlines parses "encoding=10m,finalizing=1m".
func ParsePhaseDeadlines(s string) (map[domain.ExportPhase]time.Duration, error) {
	out := make(map[domain.ExportPhase]time.Duration)
	for _, part := range splitList(s) {
		name, raw, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid phase deadline %q (want phase=duration)", part)
		}
		phase := domain.ExportPhase(strings.TrimSpace(name))
		if !phase.Valid() {
			return nil, fmt.Errorf("unknown export phase %q", name)
		}
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid deadline for phase %s: %w", phase, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("deadline for phase %s must be positive", phase)
		}
		out[phase] = d
	}
	return out, nil
}

func (c *Config) expandDataPath() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	expanded, err := expandPath(c.Storage.DataPath, filepath.Join(home, ".estudio", "data"))
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute. Empty paths become defaultPath.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, rest)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// value returns the first non-empty of flag, env var, default.
func value(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

func intValue(flagValue, envKey string, defaultValue int) int {
	s := value(flagValue, envKey, "")
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultValue
	}
	return n
}

func floatValue(flagValue, envKey, defaultValue string) (float64, error) {
	s := value(flagValue, envKey, defaultValue)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return f, nil
}

func durationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	s := value(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
