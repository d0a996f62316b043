package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bookwaves/feig-rfid-bridge/internal/config"
)

func validYAML() string {
	return `
tagPasswords:
  DE290Tag.access: "s3cr3t-access"
  DE290Tag.kill: "s3cr3t-kill"
readers:
  - name: circ-1
    address: 10.0.0.10
    port: 10001
    mode: host
    antennas: [1]
  - name: circ-2
    address: 10.0.0.11
    port: 10001
    mode: notification
    antennas: [1, 2]
`
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.DefaultTagFormat != "DE290" {
		t.Errorf("DefaultTagFormat = %q, want %q", cfg.DefaultTagFormat, "DE290")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, ":8080")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
	if len(cfg.Readers) != 0 {
		t.Errorf("DefaultConfig() Readers = %v, want empty", cfg.Readers)
	}

	// DefaultConfig has no readers, so it must fail validation on its own;
	// readers only ever come from the file.
	if err := config.Validate(cfg); !errors.Is(err, config.ErrNoReaders) {
		t.Errorf("Validate(DefaultConfig()) = %v, want %v", err, config.ErrNoReaders)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, validYAML())

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if len(cfg.Readers) != 2 {
		t.Fatalf("Readers count = %d, want 2", len(cfg.Readers))
	}
	if cfg.Readers[0].Name != "circ-1" {
		t.Errorf("Readers[0].Name = %q, want %q", cfg.Readers[0].Name, "circ-1")
	}
	if cfg.Readers[0].Mode != "host" {
		t.Errorf("Readers[0].Mode = %q, want %q", cfg.Readers[0].Mode, "host")
	}
	if cfg.Readers[1].Mode != "notification" {
		t.Errorf("Readers[1].Mode = %q, want %q", cfg.Readers[1].Mode, "notification")
	}
	if got := cfg.TagPasswords["DE290Tag.access"]; got != "s3cr3t-access" {
		t.Errorf("TagPasswords[DE290Tag.access] = %q, want %q", got, "s3cr3t-access")
	}

	// Ambient defaults should still apply since the file doesn't set them.
	if cfg.DefaultTagFormat != "DE290" {
		t.Errorf("DefaultTagFormat = %q, want default %q", cfg.DefaultTagFormat, "DE290")
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q, want default %q", cfg.HTTP.Addr, ":8080")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	yamlContent := validYAML() + "\nlog:\n  level: warn\n"
	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
	// Untouched ambient fields keep their defaults.
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestLoadFromEnvRequiresPath(t *testing.T) {
	// Not parallel: mutates process-wide environment.
	os.Unsetenv(config.ConfigFilePathEnv)

	_, err := config.LoadFromEnv()
	if !errors.Is(err, config.ErrConfigFilePathUnset) {
		t.Errorf("LoadFromEnv() error = %v, want %v", err, config.ErrConfigFilePathUnset)
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := writeTemp(t, validYAML())
	t.Setenv(config.ConfigFilePathEnv, path)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error: %v", err)
	}
	if len(cfg.Readers) != 2 {
		t.Errorf("Readers count = %d, want 2", len(cfg.Readers))
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	base := func() *config.ServiceConfig {
		cfg := config.DefaultConfig()
		cfg.Readers = []config.ReaderConfig{
			{Name: "circ-1", Address: "10.0.0.10", Port: 10001, Mode: "host", Antennas: []int{1}},
		}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*config.ServiceConfig)
		wantErr error
	}{
		{
			name:    "no readers",
			modify:  func(cfg *config.ServiceConfig) { cfg.Readers = nil },
			wantErr: config.ErrNoReaders,
		},
		{
			name: "duplicate reader name",
			modify: func(cfg *config.ServiceConfig) {
				cfg.Readers = append(cfg.Readers, cfg.Readers[0])
			},
			wantErr: config.ErrDuplicateReaderName,
		},
		{
			name:    "invalid address",
			modify:  func(cfg *config.ServiceConfig) { cfg.Readers[0].Address = "not-an-ip" },
			wantErr: config.ErrInvalidReaderAddress,
		},
		{
			name:    "empty address",
			modify:  func(cfg *config.ServiceConfig) { cfg.Readers[0].Address = "" },
			wantErr: config.ErrInvalidReaderAddress,
		},
		{
			name:    "port zero",
			modify:  func(cfg *config.ServiceConfig) { cfg.Readers[0].Port = 0 },
			wantErr: config.ErrInvalidReaderPort,
		},
		{
			name:    "port too large",
			modify:  func(cfg *config.ServiceConfig) { cfg.Readers[0].Port = 70000 },
			wantErr: config.ErrInvalidReaderPort,
		},
		{
			name:    "invalid mode",
			modify:  func(cfg *config.ServiceConfig) { cfg.Readers[0].Mode = "bogus" },
			wantErr: config.ErrInvalidReaderMode,
		},
		{
			name:    "invalid antenna",
			modify:  func(cfg *config.ServiceConfig) { cfg.Readers[0].Antennas = []int{0} },
			wantErr: config.ErrInvalidAntenna,
		},
		{
			name:    "antenna out of range",
			modify:  func(cfg *config.ServiceConfig) { cfg.Readers[0].Antennas = []int{9} },
			wantErr: config.ErrInvalidAntenna,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := base()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Readers = []config.ReaderConfig{
		{Name: "circ-1", Address: "10.0.0.10", Port: 10001, Mode: "host", Antennas: []int{1, 2, 3, 4}},
		{Name: "circ-2", Address: "10.0.0.11", Port: 10001, Mode: "notification", Antennas: []int{8}},
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate() returned error for valid config: %v", err)
	}
}

func TestReaderConfigPortString(t *testing.T) {
	t.Parallel()

	rc := config.ReaderConfig{Port: 10001}
	if got := rc.PortString(); got != "10001" {
		t.Errorf("PortString() = %q, want %q", got, "10001")
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadEnvOverridesAmbientOnly(t *testing.T) {
	// Not parallel: mutates process-wide environment.
	path := writeTemp(t, validYAML())

	t.Setenv("FEIG_LOG_LEVEL", "debug")
	t.Setenv("FEIG_HTTP_ADDR", ":9090")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("HTTP.Addr = %q, want %q (from env)", cfg.HTTP.Addr, ":9090")
	}
	// Readers are unaffected by any env override.
	if len(cfg.Readers) != 2 {
		t.Errorf("Readers count = %d, want 2 (unaffected by env)", len(cfg.Readers))
	}
}

// writeTemp creates a temporary YAML file and returns its path. The file is
// automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "feig.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
