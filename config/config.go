// Package config loads engine configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const envPrefix = "STREAMUP_"

// Config is the full engine configuration.
type Config struct {
	Upload  UploadConfig  `yaml:"upload"`
	API     APIConfig     `yaml:"api"`
	Queue   QueueConfig   `yaml:"queue"`
	Probe   ProbeConfig   `yaml:"probe"`
	Logging LoggingConfig `yaml:"logging"`

	// Libraries maps library ids to their API keys. Keys can also come
	// from STREAMUP_API_KEY_<library-id> environment variables.
	Libraries map[string]string `yaml:"libraries"`
}

// UploadConfig tunes the resumable upload protocol.
type UploadConfig struct {
	// Endpoint is the resumable-upload endpoint URL.
	Endpoint string `yaml:"endpoint"`

	// ChunkSizeBytes is the per-request transfer size. Zero uses the
	// protocol default of 4 MiB.
	ChunkSizeBytes int64 `yaml:"chunk_size_bytes"`

	// LockedDelaySec is the wait after a locked-resource response.
	LockedDelaySec int `yaml:"locked_delay_sec"`

	// ProbeDelaySec is the wait between in-session route probes.
	ProbeDelaySec int `yaml:"probe_delay_sec"`

	// SignatureTTLHours is the validity window of the per-session signed
	// credential.
	SignatureTTLHours int `yaml:"signature_ttl_hours"`
}

// APIConfig locates the remote video registry.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
}

// QueueConfig tunes queue persistence and admission.
type QueueConfig struct {
	// File is the durable queue record. A leading ~ expands to the
	// user's home directory.
	File string `yaml:"file"`

	// AutoResume promotes paused entries on start-up and on
	// connectivity regain.
	AutoResume bool `yaml:"auto_resume"`

	// DeleteTimeoutSec bounds the remote delete issued by cancel.
	DeleteTimeoutSec int `yaml:"delete_timeout_sec"`
}

// ProbeConfig tunes the background reachability prober.
type ProbeConfig struct {
	// Target overrides the probed URL. Empty defaults to the upload
	// endpoint.
	Target string `yaml:"target"`

	IntervalSec int `yaml:"interval_sec"`
	TimeoutSec  int `yaml:"timeout_sec"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Upload: UploadConfig{
			Endpoint:          "https://video.bunnycdn.com/tusupload",
			LockedDelaySec:    5,
			ProbeDelaySec:     1,
			SignatureTTLHours: 6,
		},
		API: APIConfig{
			BaseURL: "https://video.bunnycdn.com",
		},
		Queue: QueueConfig{
			File:             "~/.streamup/queue.json",
			AutoResume:       true,
			DeleteTimeoutSec: 30,
		},
		Probe: ProbeConfig{
			IntervalSec: 15,
			TimeoutSec:  5,
		},
		Logging: LoggingConfig{Level: "info"},
		Libraries: map[string]string{},
	}
}

// Load reads the YAML file at path, applies environment overrides, and
// validates. A missing file is not an error; defaults plus environment
// apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(ExpandPath(path))
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envPrefix + "ENDPOINT"); v != "" {
		c.Upload.Endpoint = v
	}
	if v := os.Getenv(envPrefix + "API_BASE"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "QUEUE_FILE"); v != "" {
		c.Queue.File = v
	}
	if v := os.Getenv(envPrefix + "AUTO_RESUME"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Queue.AutoResume = b
		}
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if c.Libraries == nil {
		c.Libraries = map[string]string{}
	}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		libraryID, found := strings.CutPrefix(name, envPrefix+"API_KEY_")
		if found && libraryID != "" {
			c.Libraries[libraryID] = value
		}
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Upload.Endpoint == "" {
		return fmt.Errorf("config: upload.endpoint is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.base_url is required")
	}
	if c.Queue.File == "" {
		return fmt.Errorf("config: queue.file is required")
	}
	if c.Upload.ChunkSizeBytes < 0 {
		return fmt.Errorf("config: upload.chunk_size_bytes must not be negative")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Logging.Level)
	}
	return nil
}

// LogLevel converts the configured level name to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// QueueFile is the expanded path of the durable queue record.
func (c *Config) QueueFile() string {
	return ExpandPath(c.Queue.File)
}

// ProbeTarget is the URL the reachability prober checks.
func (c *Config) ProbeTarget() string {
	if c.Probe.Target != "" {
		return c.Probe.Target
	}
	return c.Upload.Endpoint
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
