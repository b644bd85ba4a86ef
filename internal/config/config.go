package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// URLEnv overrides gateway.base_url when set.
const URLEnv = "FRICTIONLOG_URL"

type Config struct {
	Gateway       Gateway       `yaml:"gateway"`
	Analytics     Analytics     `yaml:"analytics"`
	Notifications Notifications `yaml:"notifications"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
	Logging       Logging       `yaml:"logging"`
}

type Gateway struct {
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=0"`
}

type Analytics struct {
	TrendDays         int `yaml:"trend_days" validate:"min=1,max=365"`
	MostAnnoyingLimit int `yaml:"most_annoying_limit" validate:"min=1"`
}

type Notifications struct {
	Enabled bool `yaml:"enabled"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

type Logging struct {
	Level string `yaml:"level" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

var validate = validator.New()

// ConfigDir returns the XDG config directory for frictionlog.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "frictionlog")
}

// DataDir returns the XDG data directory for frictionlog.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "frictionlog")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/frictionlog/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'frictionlog init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file, then applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns the embedded defaults with environment overrides applied.
// Commands that run without a config file use it.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	cfg.applyEnv()
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Gateway: Gateway{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 10,
		},
		Analytics: Analytics{
			TrendDays:         30,
			MostAnnoyingLimit: 5,
		},
		Notifications: Notifications{Enabled: true},
		Server:        Server{Port: 8000},
		Logging:       Logging{Level: "WARN"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(URLEnv); v != "" {
		c.Gateway.BaseURL = v
	}
}

// Timeout is the per-request gateway timeout. Zero means no client-side bound.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath is where the local backend keeps its SQLite file.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "frictionlog.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
