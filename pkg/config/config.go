// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/ghostwriter/ghostwriter/pkg/interfaces"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/types"
	"github.com/ghostwriter/ghostwriter/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Manager handles configuration operations
type Manager struct {
	log    logger.Logger
	mu     sync.Mutex
	reload *ReloadManager
}

var _ interfaces.ConfigManager = (*Manager)(nil)

// NewManager creates a new configuration manager
func NewManager(log logger.Logger) *Manager {
	return &Manager{log: log}
}

// LoadConfig loads configuration from a file
func (m *Manager) LoadConfig(path string) (*types.GhostwriterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg types.GhostwriterConfig

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.validateConfig(&cfg)
	}

	// Try YAML via a JSON round-trip so both tag sets parse identically
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err == nil {
		jsonData, err := json.Marshal(yamlData)
		if err == nil {
			if err := json.Unmarshal(jsonData, &cfg); err == nil {
				return m.validateConfig(&cfg)
			}
		}
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML: %s", path)
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(config *types.GhostwriterConfig) error {
	// Check version
	if config.Version != "1.0" {
		return fmt.Errorf("unsupported config version: %s", config.Version)
	}

	// Validate documents
	if len(config.Documents) == 0 {
		return fmt.Errorf("no documents defined")
	}

	documentNames := make(map[string]bool)
	for i := range config.Documents {
		document := &config.Documents[i]

		if document.Name == "" {
			return fmt.Errorf("document %d: missing name", i)
		}

		// Check for duplicate names
		if documentNames[document.Name] {
			return fmt.Errorf("duplicate document name: %s", document.Name)
		}
		documentNames[document.Name] = true

		if err := m.validateDocument(document); err != nil {
			return fmt.Errorf("document '%s': %w", document.Name, err)
		}
	}

	return nil
}

// WatchConfig watches the configuration file and invokes callback with
// each successfully reloaded configuration
func (m *Manager) WatchConfig(path string, callback func(*types.GhostwriterConfig)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reload != nil {
		return fmt.Errorf("already watching configuration file")
	}

	rm := NewReloadManager(path, m.log)
	rm.AddCallback(func(cfg *types.GhostwriterConfig, err error) {
		if err != nil || cfg == nil {
			return
		}
		callback(cfg)
	})

	if err := rm.StartWatching(); err != nil {
		return err
	}

	m.reload = rm
	return nil
}

// StopWatching stops a watch started by WatchConfig
func (m *Manager) StopWatching() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reload == nil {
		return nil
	}

	err := m.reload.StopWatching()
	m.reload = nil
	return err
}

// GetDefaultConfig returns a default configuration
func (m *Manager) GetDefaultConfig() *types.GhostwriterConfig {
	enabled := true

	return &types.GhostwriterConfig{
		Version:   "1.0",
		Documents: []types.DocumentSpec{},
		Watch: &types.WatchConfig{
			UseDefaultExclusions: true,
			ExcludeDirs:          utils.GetDefaultExclusions(),
			SettlingDelay:        500,
		},
		Scheduling: &types.SchedulingConfig{
			Parallelization: 2,
		},
		Notifications: &types.NotificationConfig{
			Enabled: &enabled,
		},
		Logging: &types.LoggingConfig{
			Level: types.LogLevelInfo,
		},
	}
}

// Private methods

func (m *Manager) validateConfig(cfg *types.GhostwriterConfig) (*types.GhostwriterConfig, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *Manager) validateDocument(document *types.DocumentSpec) error {
	if len(document.Templates) == 0 {
		return fmt.Errorf("no templates defined")
	}

	if document.OutputDir == "" {
		return fmt.Errorf("missing output directory")
	}

	if _, err := types.ParsePostprocessKind(string(document.Postprocess)); err != nil {
		return err
	}

	if n := len([]rune(document.CSVDelimiter)); n > 1 {
		return fmt.Errorf("csv delimiter must be a single character, got %q", document.CSVDelimiter)
	}

	return nil
}
