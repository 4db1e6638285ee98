package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v6"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	SMTP        SMTPConfig                `json:"smtp"`
}

type BasicConfig struct {
	ServerAddress   string `json:"server_address"`
	Provider        string `json:"provider"`
	SessionTTLHours int    `json:"session_ttl_hours"`
	ChatTimeoutSecs int    `json:"chat_timeout_seconds"`
	RateLimitMax    int    `json:"rate_limit_max"`
	RateLimitWindow int    `json:"rate_limit_window_minutes"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// secretOverrides lets credentials come from the environment so the config
// file can be committed without them.
type secretOverrides struct {
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var secrets secretOverrides
	if err := env.Parse(&secrets); err != nil {
		return fmt.Errorf("parse env overrides: %w", err)
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	if secrets.OpenAIAPIKey != "" {
		p := c.Providers["openai"]
		p.APIKey = secrets.OpenAIAPIKey
		c.Providers["openai"] = p
	}
	if secrets.GeminiAPIKey != "" {
		p := c.Providers["gemini"]
		p.APIKey = secrets.GeminiAPIKey
		c.Providers["gemini"] = p
	}
	if secrets.SMTPUser != "" {
		c.SMTP.Username = secrets.SMTPUser
	}
	if secrets.SMTPPassword != "" {
		c.SMTP.Password = secrets.SMTPPassword
	}
	return nil
}
