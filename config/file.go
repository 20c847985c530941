package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads settings from a YAML file. Fields missing from the file keep
// their defaults and invalid values are replaced by defaults.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("failed to parse settings %s: %w", path, err)
	}

	if fixed := s.Validate(); len(fixed) > 0 {
		slog.Info("config: settings corrected", "path", path, "fields", fixed)
	}
	return s, nil
}

// Save validates s and writes it to a YAML file.
func Save(path string, s Settings) error {
	s.Validate()

	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	slog.Info("config: settings saved", "path", path)
	return nil
}
