// Package config loads and manages filter rule configuration.
package config

import (
	"encoding/json"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nsxbet/sql-filter-validator/pkg/types"
)

// Config represents a named set of filter rules.
type Config struct {
	ID    string              `yaml:"id" json:"id"`
	Rules []*types.FilterRule `yaml:"rules" json:"rules"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(filename string) (*Config, error) {
	slog.Debug("Loading config from file", "filename", filename)
	data, err := os.ReadFile(filename)
	if err != nil {
		slog.Debug("Failed to read file", "error", err)
		return nil, err
	}

	var config Config

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, &config); err != nil {
		slog.Debug("YAML unmarshal failed, attempting JSON", "error", err)
		if err := json.Unmarshal(data, &config); err != nil {
			slog.Debug("JSON unmarshal failed", "error", err)
			return nil, err
		}
	}

	// Rules without an explicit operator default to equality, the common
	// case for soft-delete and tenant-isolation filters.
	for _, rule := range config.Rules {
		if rule.Operator == types.OpUnspecified {
			rule.Operator = types.OpEquals
		}
	}

	slog.Debug("Loaded config", "rules_count", len(config.Rules))
	return &config, nil
}

// DefaultConfig returns a configuration with no rules.
func DefaultConfig(id string) *Config {
	return &Config{
		ID:    id,
		Rules: []*types.FilterRule{},
	}
}

// FilterRules returns the rules as values, in declaration order.
func (c *Config) FilterRules() []types.FilterRule {
	rules := make([]types.FilterRule, 0, len(c.Rules))
	for _, rule := range c.Rules {
		if rule != nil {
			rules = append(rules, *rule)
		}
	}
	return rules
}

// RulesForTable returns the rules targeting the given table.
func (c *Config) RulesForTable(table string) []*types.FilterRule {
	var rules []*types.FilterRule
	for _, rule := range c.Rules {
		if rule != nil && rule.Table == table {
			rules = append(rules, rule)
		}
	}
	return rules
}
