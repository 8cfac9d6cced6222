package app

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	GitHubToken       string `yaml:"github_token"`
	MaxConcurrentRuns int    `yaml:"max_concurrent_runs"`
	RunTimeoutMinutes int    `yaml:"run_timeout_minutes"`
	MaxFiles          int    `yaml:"max_files"`
	DataDir           string `yaml:"data_dir"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.openai.com/v1/chat/completions",
		Model:             "gpt-4o-mini",
		MaxConcurrentRuns: 3,
		RunTimeoutMinutes: 10,
		MaxFiles:          60,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 3
	}
	if cfg.RunTimeoutMinutes <= 0 {
		cfg.RunTimeoutMinutes = 10
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 60
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		return errors.New("no path provided for config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "repolens", "config.yml")
}

// RunTimeout returns the run timeout as a duration.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMinutes) * time.Minute
}

// ResolveDataDir returns the directory for checkpoints and history, creating
// it if needed.
func (c Config) ResolveDataDir() (string, error) {
	dir := c.DataDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "repolens")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
