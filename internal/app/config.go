package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when no settings
// file is given.
const DefaultConfigFile = "traitgraph.yaml"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Paths are .hcl files or directories holding graph and module
	// descriptions.
	Paths []string `mapstructure:"paths"`

	LogFormat string `mapstructure:"log_format"`
	LogLevel  string `mapstructure:"log_level"`

	Workers int `mapstructure:"workers"`
	// Frames bounds the run; zero runs until the context is cancelled.
	Frames int `mapstructure:"frames"`
	// DeltaTime is the simulated seconds per frame.
	DeltaTime float64 `mapstructure:"delta_time"`
	// FrameInterval paces the loop in wall time; zero runs flat out.
	FrameInterval time.Duration `mapstructure:"frame_interval"`

	// MetricsPort serves /health, /metrics and the dumps. Zero disables it.
	MetricsPort int `mapstructure:"metrics_port"`

	Store StoreConfig `mapstructure:"store"`
	Arena ArenaConfig `mapstructure:"arena"`

	Modules map[string]ModuleConfig `mapstructure:"modules"`
}

// StoreConfig selects where compiled graphs are kept.
type StoreConfig struct {
	// Backend is one of "memory", "file" or "redis".
	Backend string      `mapstructure:"backend"`
	Dir     string      `mapstructure:"dir"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the redis graph store.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ArenaConfig sizes the registries' preallocated storage.
type ArenaConfig struct {
	TraitBytes       int `mapstructure:"trait_bytes"`
	TemplateCapacity int `mapstructure:"template_capacity"`
}

// ModuleConfig tunes one module description at startup.
type ModuleConfig struct {
	// Instances is how many instances of the module are registered. Zero
	// means one.
	Instances int `mapstructure:"instances"`
	// Variables overrides host variable defaults.
	Variables map[string]any `mapstructure:"variables"`
	// Disabled registers no instance at all.
	Disabled bool `mapstructure:"disabled"`
}

// DefaultConfig returns the settings used when no file overrides them.
func DefaultConfig() Config {
	return Config{
		LogFormat: "text",
		LogLevel:  "info",
		Workers:   4,
		DeltaTime: 1.0 / 60,
		Store:     StoreConfig{Backend: "memory"},
	}
}

// LoadConfig reads a YAML settings file on top of DefaultConfig. A missing
// file is only an error when required is set.
func LoadConfig(path string, required bool) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading settings: %w", err)
	}
	if err := DecodeConfig(data, &cfg); err != nil {
		return cfg, fmt.Errorf("settings file '%s': %w", path, err)
	}
	return cfg, nil
}

// DecodeConfig decodes YAML into cfg, keeping the fields the document does
// not mention. Unknown keys are errors.
func DecodeConfig(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// Validate checks the settings before anything is wired.
func (c *Config) Validate() error {
	if len(c.Paths) == 0 {
		return errors.New("no graph description paths configured")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Frames < 0 {
		return fmt.Errorf("frames must not be negative, got %d", c.Frames)
	}
	if c.DeltaTime <= 0 {
		return fmt.Errorf("delta time must be positive, got %g", c.DeltaTime)
	}
	switch c.Store.Backend {
	case "memory":
	case "file":
		if c.Store.Dir == "" {
			return errors.New("file store needs a directory")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return errors.New("redis store needs an address")
		}
	default:
		return fmt.Errorf("unknown store backend '%s'", c.Store.Backend)
	}
	return nil
}
