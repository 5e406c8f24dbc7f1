package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/radio-control/txagg/internal/tx"
)

// DefaultFile is loaded when no path is given and TXAGG_CONFIG is unset.
const DefaultFile = "txagg.yaml"

// Config represents the complete daemon configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Timing  TimingConfig  `yaml:"timing"`
	Audit   AuditConfig   `yaml:"audit"`

	// Transmitter names the section the daemon drives, normally a Multi
	// section.
	Transmitter string `yaml:"transmitter"`

	Sections map[string]Section `yaml:"-"`
}

// LoggingConfig holds logrus settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// TimingConfig holds control layer timing.
type TimingConfig struct {
	CommandTimeoutSec int `yaml:"commandTimeoutSec"`
	EventBufferSize   int `yaml:"eventBufferSize"`
	AudioRetryMs      int `yaml:"audioRetryMs"`
}

// AuditConfig holds audit log location and rotation.
type AuditConfig struct {
	Dir        string `yaml:"dir"` // empty disables the audit log
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Section is one transmitter section. Keys are upper case.
type Section map[string]string

// Compile-time assertion that Config implements tx.Config
var _ tx.Config = (*Config)(nil)

// fileConfig is the on-disk layout.
type fileConfig struct {
	Config   `yaml:",inline"`
	Sections map[string]map[string]sectionValue `yaml:"sections"`
}

// sectionValue keeps the source text of a scalar, so that names like N or
// off are not resolved as booleans. A sequence is joined with commas. An
// empty value decodes to "" so that presence-only keys such as SIMULCAST
// work.
type sectionValue string

func (v *sectionValue) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		*v = sectionValue(s)
		return nil
	}
	var list []string
	if err := unmarshal(&list); err != nil {
		return fmt.Errorf("section values must be scalars or lists of scalars: %w", err)
	}
	*v = sectionValue(strings.Join(list, ","))
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Timing: TimingConfig{
			CommandTimeoutSec: 5,
			EventBufferSize:   50,
			AudioRetryMs:      20,
		},
		Audit: AuditConfig{
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Transmitter: "Tx",
		Sections:    map[string]Section{},
	}
}

// Value returns key of section. Keys are case-insensitive; section names
// are not.
func (c *Config) Value(section, key string) (string, bool) {
	s, ok := c.Sections[section]
	if !ok {
		return "", false
	}
	v, ok := s[strings.ToUpper(key)]
	return v, ok
}

// SectionNames returns the configured section names, sorted.
func (c *Config) SectionNames() []string {
	names := make([]string, 0, len(c.Sections))
	for name := range c.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads path, or $TXAGG_CONFIG, or DefaultFile if it exists, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TXAGG_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		if err := decode(cfg, data); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. The
// environment is not consulted.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(cfg, data); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func decode(cfg *Config, data []byte) error {
	raw := fileConfig{Config: *cfg}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	*cfg = raw.Config
	cfg.Sections = make(map[string]Section, len(raw.Sections))
	for name, values := range raw.Sections {
		s := make(Section, len(values))
		for key, v := range values {
			s[strings.ToUpper(key)] = string(v)
		}
		cfg.Sections[name] = s
	}
	return nil
}

// applyEnvOverrides applies TXAGG_* environment variables to the config.
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("TXAGG_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("TXAGG_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("TXAGG_TRANSMITTER"); val != "" {
		cfg.Transmitter = val
	}
	if val := os.Getenv("TXAGG_AUDIT_DIR"); val != "" {
		cfg.Audit.Dir = val
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"TXAGG_COMMAND_TIMEOUT_SEC", &cfg.Timing.CommandTimeoutSec},
		{"TXAGG_EVENT_BUFFER_SIZE", &cfg.Timing.EventBufferSize},
		{"TXAGG_AUDIO_RETRY_MS", &cfg.Timing.AudioRetryMs},
	}
	for _, o := range ints {
		val := os.Getenv(o.env)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", o.env, val)
		}
		*o.dst = n
	}
	return nil
}
