// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wisp-engine/wisp/pkg/types"
	"gopkg.in/yaml.v3"
)

// DefaultConfigNames are the file names probed, in order, when no explicit
// config path is given.
var DefaultConfigNames = []string{
	"wisp.config.json",
	"wisp.config.yaml",
	"wisp.config.yml",
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadConfig loads configuration from a file
func (m *Manager) LoadConfig(path string) (*types.WispConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg types.WispConfig

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.validateConfig(&cfg)
	}

	// Try YAML via a JSON round-trip so both formats share one set of tags
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err == nil {
		jsonData, err := json.Marshal(yamlData)
		if err == nil {
			cfg = types.WispConfig{}
			if err := json.Unmarshal(jsonData, &cfg); err == nil {
				return m.validateConfig(&cfg)
			}
		}
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

// SaveConfig writes the configuration as indented JSON.
func (m *Manager) SaveConfig(path string, cfg *types.WispConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindConfig searches dir for a config file by its default names. It returns
// the first match or an error if none exists.
func (m *Manager) FindConfig(dir string) (string, error) {
	for _, name := range DefaultConfigNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no config file found in %s", dir)
}

// GetDefaultConfig returns a runnable starter configuration.
func (m *Manager) GetDefaultConfig() *types.WispConfig {
	enabled := true

	return &types.WispConfig{
		Version: "1.0",
		Scheduling: types.SchedulingConfig{
			Workers: 4,
		},
		World: types.WorldConfig{
			CellSize: 64,
			Bounds: types.AABB{
				Min: types.Vector2{X: -1000, Y: -1000},
				Max: types.Vector2{X: 1000, Y: 1000},
			},
		},
		Frame: types.FrameConfig{
			BudgetMillis: 16,
		},
		Notifications: &types.NotificationConfig{
			Enabled:        &enabled,
			StallThreshold: 5,
		},
		Logging: &types.LoggingConfig{
			Level: types.LogLevelInfo,
		},
	}
}

func (m *Manager) validateConfig(cfg *types.WispConfig) (*types.WispConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
