package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var DebugLog func(string, ...interface{})

type Config struct {
	DefaultSettings DefaultSettings `yaml:"default_settings"`
	Trainer         Trainer         `yaml:"trainer"`
	Database        Database        `yaml:"database"`
	Elastic         Elastic         `yaml:"elastic"`
}

type DefaultSettings struct {
	// Timeout bounds a single training run, in minutes. Zero means unlimited.
	Timeout int `yaml:"timeout"`
}

type Trainer struct {
	PythonBin  string `yaml:"python_bin"`
	Script     string `yaml:"script"`
	WorkDir    string `yaml:"work_dir"`
	CleanCache bool   `yaml:"clean_cache"`
}

type Database struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type Elastic struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Index    string `yaml:"index"`
}

func Default() *Config {
	return &Config{
		DefaultSettings: DefaultSettings{
			Timeout: 0,
		},
		Trainer: Trainer{
			Script:     "run.py",
			WorkDir:    ".",
			CleanCache: true,
		},
	}
}

type Manager struct {
	config     *Config
	configPath string
}

func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
	}
}

func (m *Manager) LoadConfig() error {
	explicit := m.configPath != ""

	if m.configPath == "" {
		m.configPath = m.findConfigFile()
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		if explicit {
			return fmt.Errorf("config file not found at %s", m.configPath)
		}
		// a launcher must work unconfigured
		if DebugLog != nil {
			DebugLog("no config file found, using built-in defaults")
		}
		m.config = Default()
		return nil
	}

	if DebugLog != nil {
		DebugLog("loading config from %s", m.configPath)
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := m.validateConfig(config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) GetConfig() *Config {
	return m.config
}

func (m *Manager) findConfigFile() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	if _, err := os.Stat("config/config.yaml"); err == nil {
		return "config/config.yaml"
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(homeDir, ".lvtrun", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return "config/config.yaml"
}

func (m *Manager) validateConfig(config *Config) error {
	if config.DefaultSettings.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	if config.Trainer.Script == "" {
		return fmt.Errorf("trainer script must not be empty")
	}

	if config.Database.Enabled {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required when database is enabled")
		}
		if config.Database.Port <= 0 {
			return fmt.Errorf("database port must be greater than 0")
		}
	}

	if config.Elastic.Enabled && config.Elastic.URL == "" {
		return fmt.Errorf("elasticsearch url is required when elastic is enabled")
	}

	return nil
}
