// Package config handles loading, validation, and access to application configuration.
package config

import (
	"time"
)

// Config holds the application configuration.
type Config struct {
	LLM        LLMConfig        `koanf:"llm"`
	Weather    WeatherConfig    `koanf:"weather"`
	News       NewsConfig       `koanf:"news"`
	Agent      AgentConfig      `koanf:"agent"`
	Email      EmailConfig      `koanf:"email"`
	Dashboard  DashboardConfig  `koanf:"dashboard"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Log        LogConfig        `koanf:"log"`
}

type LLMConfig struct {
	APIKey        string        `koanf:"api_key"`
	ModelName     string        `koanf:"model_name"     validate:"required"`
	Timeout       time.Duration `koanf:"timeout"        validate:"gte=0"`
	RetryAttempts int           `koanf:"retry_attempts" validate:"gte=0,lte=10"`
}

type WeatherConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Units   string        `koanf:"units"    validate:"oneof=metric imperial standard"`
	Timeout time.Duration `koanf:"timeout"  validate:"gte=0"`
}

type NewsConfig struct {
	APIKey       string        `koanf:"api_key"`
	BaseURL      string        `koanf:"base_url"      validate:"required,url"`
	PageSize     int           `koanf:"page_size"     validate:"gte=1,lte=100"`
	LookbackDays int           `koanf:"lookback_days" validate:"gte=0"`
	Language     string        `koanf:"language"`
	Timeout      time.Duration `koanf:"timeout"       validate:"gte=0"`
}

type AgentConfig struct {
	Schedule        string   `koanf:"schedule"         validate:"required"`
	DefaultLocation string   `koanf:"default_location" validate:"required"`
	MemoryFile      string   `koanf:"memory_file"      validate:"required"`
	ControlFile     string   `koanf:"control_file"     validate:"required"`
	ReportDir       string   `koanf:"report_dir"       validate:"required"`
	AlertLevels     []string `koanf:"alert_levels"     validate:"dive,oneof=LOW MODERATE HIGH EXTREME"`
	MetricsAddr     string   `koanf:"metrics_addr"`
}

type EmailConfig struct {
	Host       string   `koanf:"host"`
	Port       int      `koanf:"port"       validate:"gte=0,lte=65535"`
	User       string   `koanf:"user"`
	Password   string   `koanf:"password"`
	Recipients []string `koanf:"recipients"`
}

type DashboardConfig struct {
	Addr            string        `koanf:"addr"             validate:"required"`
	DefaultLocation string        `koanf:"default_location" validate:"required"`
	GeoIPURL        string        `koanf:"geoip_url"        validate:"omitempty,url"`
	CacheTTL        time.Duration `koanf:"cache_ttl"        validate:"gte=0"`
	LocationTTL     time.Duration `koanf:"location_ttl"     validate:"gte=0"`
}

type SupervisorConfig struct {
	CredentialEnv    string        `koanf:"credential_env"    validate:"required"`
	Worker           []string      `koanf:"worker"`
	Dashboard        []string      `koanf:"dashboard"`
	DashboardEnabled bool          `koanf:"dashboard_enabled"`
	GracePeriod      time.Duration `koanf:"grace_period"      validate:"gt=0"`
	StopSignal       string        `koanf:"stop_signal"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

const (
	defaultConfigDirName  = ".climatesense"
	defaultConfigFileName = "config.yaml"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			ModelName:     "models/gemini-pro-latest",
			Timeout:       60 * time.Second,
			RetryAttempts: 3,
		},
		Weather: WeatherConfig{
			BaseURL: "https://api.openweathermap.org/data/2.5",
			Units:   "metric",
			Timeout: 15 * time.Second,
		},
		News: NewsConfig{
			BaseURL:      "https://newsapi.org/v2",
			PageSize:     10,
			LookbackDays: 3,
			Language:     "en",
			Timeout:      15 * time.Second,
		},
		Agent: AgentConfig{
			Schedule:        "@every 1h",
			DefaultLocation: "Kerala,IN",
			MemoryFile:      "memory_log.json",
			ControlFile:     "control_file.json",
			ReportDir:       ".",
			AlertLevels:     []string{"MODERATE", "HIGH", "EXTREME"},
		},
		Email: EmailConfig{
			Port: 465,
		},
		Dashboard: DashboardConfig{
			Addr:            ":8501",
			DefaultLocation: "Kochi,IN",
			GeoIPURL:        "http://ip-api.com/json/",
			CacheTTL:        60 * time.Second,
			LocationTTL:     time.Hour,
		},
		Supervisor: SupervisorConfig{
			CredentialEnv:    "GOOGLE_API_KEY",
			DashboardEnabled: true,
			GracePeriod:      10 * time.Second,
			StopSignal:       "SIGTERM",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Configured reports whether all settings needed to send mail are present.
func (c *EmailConfig) Configured() bool {
	return c.Host != "" && c.User != "" && c.Password != "" && len(c.Recipients) > 0
}
