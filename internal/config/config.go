// Package config loads the bridge's ServiceConfig using koanf/v2.
//
// The reader fleet and tag password map come from a single required YAML
// file; ambient settings (log level/format, HTTP/metrics
// addresses) may additionally be overridden by FEIG_-prefixed environment
// variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// ServiceConfig holds the complete bridge configuration: the reader
// fleet and tag password map, plus the ambient Log/HTTP/Metrics sections.
type ServiceConfig struct {
	TagPasswords     map[string]string `koanf:"tagPasswords"`
	DefaultTagFormat string            `koanf:"defaultTagFormat"`
	Readers          []ReaderConfig    `koanf:"readers"`

	Log     LogConfig     `koanf:"log"`
	HTTP    HTTPConfig    `koanf:"http"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ReaderConfig describes one configured reader.
type ReaderConfig struct {
	Name     string `koanf:"name"`
	Address  string `koanf:"address"`
	Port     int    `koanf:"port"`
	Mode     string `koanf:"mode"`
	Antennas []int  `koanf:"antennas"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// HTTPConfig holds the JSON-surface listen address.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus endpoint configuration. The /metrics
// endpoint is mounted on the same listener as the JSON API, so only the
// path is configurable.
type MetricsConfig struct {
	Path string `koanf:"path"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// defaultTagFormat is applied when the YAML file omits defaultTagFormat.
const defaultTagFormat = "DE290"

// DefaultConfig returns a ServiceConfig populated with the ambient
// defaults; TagPasswords/Readers are left empty, as they have no sensible
// default and must come from the file.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		DefaultTagFormat: defaultTagFormat,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for ambient configuration
// overrides. Variables are named FEIG_<section>_<key>, e.g. FEIG_LOG_LEVEL.
// tagPasswords and readers are file-only and are never overridden via
// environment variables.
const envPrefix = "FEIG_"

// ConfigFilePathEnv is the required environment variable naming the YAML
// configuration file.
const ConfigFilePathEnv = "CONFIG_FILE_PATH"

// ErrConfigFilePathUnset indicates CONFIG_FILE_PATH is not set.
var ErrConfigFilePathUnset = errors.New("CONFIG_FILE_PATH environment variable is not set")

// LoadFromEnv reads CONFIG_FILE_PATH and loads the configuration it names.
func LoadFromEnv() (*ServiceConfig, error) {
	path, ok := os.LookupEnv(ConfigFilePathEnv)
	if !ok || path == "" {
		return nil, ErrConfigFilePathUnset
	}
	return Load(path)
}

// Load reads configuration from a YAML file at path, overlays FEIG_-
// prefixed environment variable overrides for ambient settings, and
// merges on top of DefaultConfig(). Missing ambient fields inherit
// defaults; tagPasswords and readers come solely from the file.
func Load(path string) (*ServiceConfig, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &ServiceConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DefaultTagFormat == "" {
		cfg.DefaultTagFormat = defaultTagFormat
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms FEIG_LOG_LEVEL -> log.level. Only ambient
// sections (log, http, metrics) are meaningfully addressable this way;
// a FEIG_TAGPASSWORDS_* or FEIG_READERS_* variable would collide with
// koanf's dotted-path merge and is intentionally not a supported override.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *ServiceConfig) error {
	defaultMap := map[string]any{
		"defaultTagFormat": defaults.DefaultTagFormat,
		"log.level":        defaults.Log.Level,
		"log.format":       defaults.Log.Format,
		"http.addr":        defaults.HTTP.Addr,
		"metrics.path":     defaults.Metrics.Path,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrNoReaders indicates the readers list is empty or absent.
	ErrNoReaders = errors.New("readers must not be empty")

	// ErrDuplicateReaderName indicates two reader entries share a name.
	ErrDuplicateReaderName = errors.New("duplicate reader name")

	// ErrInvalidReaderAddress indicates a reader's address is missing or not an IPv4 address.
	ErrInvalidReaderAddress = errors.New("reader address must be a valid IPv4 address")

	// ErrInvalidReaderPort indicates a reader's port is out of range.
	ErrInvalidReaderPort = errors.New("reader port must be in 1..65535")

	// ErrInvalidReaderMode indicates a reader's mode is neither host nor notification.
	ErrInvalidReaderMode = errors.New("reader mode must be host or notification")

	// ErrInvalidAntenna indicates an antenna index outside 1..8.
	ErrInvalidAntenna = errors.New("antenna must be in 1..8")
)

// ValidReaderModes lists the recognized reader mode strings.
var ValidReaderModes = map[string]bool{
	"host":         true,
	"notification": true,
}

// Validate checks the configuration for logical errors. Any failure here
// is fatal at startup.
func Validate(cfg *ServiceConfig) error {
	if len(cfg.Readers) == 0 {
		return ErrNoReaders
	}

	seen := make(map[string]struct{}, len(cfg.Readers))
	for i, rc := range cfg.Readers {
		if _, dup := seen[rc.Name]; dup {
			return fmt.Errorf("readers[%d] name %q: %w", i, rc.Name, ErrDuplicateReaderName)
		}
		seen[rc.Name] = struct{}{}

		if err := validateReader(rc); err != nil {
			return fmt.Errorf("readers[%d] %q: %w", i, rc.Name, err)
		}
	}

	return nil
}

func validateReader(rc ReaderConfig) error {
	if _, err := netip4(rc.Address); err != nil {
		return ErrInvalidReaderAddress
	}
	if rc.Port < 1 || rc.Port > 65535 {
		return ErrInvalidReaderPort
	}
	if !ValidReaderModes[rc.Mode] {
		return ErrInvalidReaderMode
	}
	for _, ant := range rc.Antennas {
		if ant < 1 || ant > 8 {
			return fmt.Errorf("antenna %d: %w", ant, ErrInvalidAntenna)
		}
	}
	return nil
}

// netip4 validates s as a dotted-quad IPv4 address, returning it
// unchanged on success.
func netip4(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty address")
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("%q is not an IPv4 address", s)
	}
	return s, nil
}

// PortString renders a ReaderConfig's port as a string, for address
// formatting in driver construction.
func (rc ReaderConfig) PortString() string {
	return strconv.Itoa(rc.Port)
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
