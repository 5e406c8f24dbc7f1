package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/radio-control/txagg/internal/multitx"
)

// Validate enforces structural and timing rules.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateLogging(cfg); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	if err := validateTiming(cfg); err != nil {
		return fmt.Errorf("timing validation failed: %w", err)
	}

	if err := validateAudit(cfg); err != nil {
		return fmt.Errorf("audit validation failed: %w", err)
	}

	if err := validateSections(cfg); err != nil {
		return fmt.Errorf("transmitter validation failed: %w", err)
	}

	return nil
}

func validateLogging(cfg *Config) error {
	if _, err := logrus.ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q, must be text or json", cfg.Logging.Format)
	}
	return nil
}

func validateTiming(cfg *Config) error {
	t := cfg.Timing
	if t.CommandTimeoutSec <= 0 || t.CommandTimeoutSec > 60 {
		return fmt.Errorf("command timeout %d seconds is outside reasonable range [1, 60]", t.CommandTimeoutSec)
	}
	if t.EventBufferSize <= 0 || t.EventBufferSize > 10000 {
		return fmt.Errorf("event buffer size %d is outside reasonable range [1, 10000]", t.EventBufferSize)
	}
	if t.AudioRetryMs <= 0 || t.AudioRetryMs > 1000 {
		return fmt.Errorf("audio retry %d ms is outside reasonable range [1, 1000]", t.AudioRetryMs)
	}
	return nil
}

func validateAudit(cfg *Config) error {
	a := cfg.Audit
	if a.MaxSizeMB <= 0 {
		return fmt.Errorf("max size must be positive, got %d", a.MaxSizeMB)
	}
	if a.MaxBackups < 0 || a.MaxAgeDays < 0 {
		return fmt.Errorf("max backups and max age must be non-negative, got %d and %d", a.MaxBackups, a.MaxAgeDays)
	}
	return nil
}

// validateSections checks that the driven transmitter exists, every section
// has a TYPE, and aggregates only reference existing sections without
// cycles.
func validateSections(cfg *Config) error {
	if cfg.Transmitter == "" {
		return fmt.Errorf("no transmitter configured")
	}
	if _, ok := cfg.Sections[cfg.Transmitter]; !ok {
		return fmt.Errorf("transmitter section %s not found", cfg.Transmitter)
	}

	for _, name := range cfg.SectionNames() {
		typeName, ok := cfg.Value(name, "TYPE")
		if !ok || strings.TrimSpace(typeName) == "" {
			return fmt.Errorf("section %s has no TYPE", name)
		}
		if !isMulti(typeName) {
			continue
		}

		list, _ := cfg.Value(name, "TRANSMITTERS")
		members := multitx.ParseTransmitterList(list)
		if len(members) == 0 {
			return fmt.Errorf("section %s: TRANSMITTERS is empty", name)
		}
		for _, member := range members {
			if _, ok := cfg.Sections[member]; !ok {
				return fmt.Errorf("section %s: transmitter %s not found", name, member)
			}
		}
	}

	// Depth-first search over aggregate membership.
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(cfg.Sections))
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("aggregate cycle: %s", strings.Join(append(path, name), " -> "))
		case done:
			return nil
		}
		state[name] = visiting
		if typeName, _ := cfg.Value(name, "TYPE"); isMulti(typeName) {
			list, _ := cfg.Value(name, "TRANSMITTERS")
			for _, member := range multitx.ParseTransmitterList(list) {
				if err := visit(member, append(path, name)); err != nil {
					return err
				}
			}
		}
		state[name] = done
		return nil
	}
	for _, name := range cfg.SectionNames() {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func isMulti(typeName string) bool {
	return strings.EqualFold(strings.TrimSpace(typeName), multitx.TypeName)
}
