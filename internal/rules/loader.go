package rules

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a rule configuration from a YAML, JSON or TOML file and validates it.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode rules file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("rules file %s: %w", path, err)
	}

	return cfg, nil
}

// Load resolves the active configuration. A rules file, when given, takes precedence
// over the preset.
func Load(preset, file string) (Config, error) {
	if file != "" {
		cfg, err := LoadFile(file)
		if err != nil {
			return Config{}, err
		}
		slog.Debug("Loaded rules from file", "file", file, "rule_sets", len(cfg.RuleSets))
		return cfg, nil
	}

	cfg, err := Preset(preset)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Export writes the configuration as YAML in the same shape LoadFile reads.
func Export(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return enc.Close()
}
