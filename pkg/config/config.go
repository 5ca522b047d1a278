// Package config loads the front end's configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full front-end configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	UI      UIConfig      `yaml:"ui"`
	Logging LoggingConfig `yaml:"logging"`
	Push    PushConfig    `yaml:"push"`
}

// ServerConfig configures the local web layer.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// BackendConfig points at the assistant backend that emits the event stream.
type BackendConfig struct {
	BaseURL   string   `yaml:"base_url"`
	Directory string   `yaml:"directory"`
	Timeout   Duration `yaml:"timeout"`
}

// Duration decodes YAML duration strings like "30s" as well as raw
// nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UIConfig holds presentation defaults.
type UIConfig struct {
	IncludeReasoning bool   `yaml:"include_reasoning"`
	ThemePath        string `yaml:"theme_path"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// PushConfig carries web-push credentials. Empty keys disable push.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Address: ":7673"},
		Backend: BackendConfig{BaseURL: "http://127.0.0.1:4096", Timeout: Duration(10 * time.Second)},
		UI:      UIConfig{IncludeReasoning: true},
		Logging: LoggingConfig{Dir: defaultLogDir(), Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadAndMerge(cfg, path); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("loading config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base, field by field. Booleans merge only
// when the key was actually present in the file.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Server.Address != "" {
		base.Server.Address = override.Server.Address
	}
	if override.Backend.BaseURL != "" {
		base.Backend.BaseURL = override.Backend.BaseURL
	}
	if override.Backend.Directory != "" {
		base.Backend.Directory = override.Backend.Directory
	}
	if override.Backend.Timeout != 0 {
		base.Backend.Timeout = override.Backend.Timeout
	}
	if boolFieldSet(raw, "ui", "include_reasoning") {
		base.UI.IncludeReasoning = override.UI.IncludeReasoning
	}
	if override.UI.ThemePath != "" {
		base.UI.ThemePath = override.UI.ThemePath
	}
	if override.Logging.Dir != "" {
		base.Logging.Dir = override.Logging.Dir
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Push.VAPIDPublicKey != "" {
		base.Push.VAPIDPublicKey = override.Push.VAPIDPublicKey
	}
	if override.Push.VAPIDPrivateKey != "" {
		base.Push.VAPIDPrivateKey = override.Push.VAPIDPrivateKey
	}
	if override.Push.Subscriber != "" {
		base.Push.Subscriber = override.Push.Subscriber
	}
}

// boolFieldSet walks the raw YAML tree and reports whether the leaf key was
// present, so an explicit false survives the merge.
func boolFieldSet(raw map[string]any, path ...string) bool {
	node := any(raw)
	for _, key := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return false
		}
		node, ok = m[key]
		if !ok {
			return false
		}
	}
	_, ok := node.(bool)
	return ok
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENCHAMBER_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("OPENCHAMBER_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("OPENCHAMBER_BACKEND_DIR"); v != "" {
		cfg.Backend.Directory = v
	}
	if v := os.Getenv("OPENCHAMBER_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("OPENCHAMBER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func defaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".openchamber/logs"
	}
	return home + "/.openchamber/logs"
}
