package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Browser BrowserConfig `mapstructure:"browser"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Server  ServerConfig  `mapstructure:"server"`
}

type LLMConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float32 `mapstructure:"temperature"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	LogRequests       bool    `mapstructure:"log_requests"`
}

type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless"`
	NoSandbox  bool          `mapstructure:"no_sandbox"`
	SlowMotion time.Duration `mapstructure:"slow_motion"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Bin        string        `mapstructure:"bin"`

	// ScreenshotDir is where relative screenshot paths are resolved.
	ScreenshotDir string `mapstructure:"screenshot_dir"`
}

type AgentConfig struct {
	MaxSteps    int           `mapstructure:"max_steps"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

type LoggerConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.requests_per_second", 2.0)
	v.SetDefault("llm.log_requests", false)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.slow_motion", "0s")
	v.SetDefault("browser.timeout", "10s")
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.screenshot_dir", "screenshots")

	v.SetDefault("agent.max_steps", 15)
	v.SetDefault("agent.task_timeout", "10m")

	v.SetDefault("logger.service_name", "web-agent")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 14)

	v.SetDefault("server.addr", "127.0.0.1:8000")
	v.SetDefault("server.shutdown_timeout", "15s")
}

// Load builds the configuration from defaults, an optional config file and
// the environment. Environment keys use the AGENT_ prefix, e.g.
// AGENT_LLM_MODEL; OPENAI_API_KEY and OPENAI_MODEL are honoured as well.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "AGENT_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.model", "AGENT_LLM_MODEL", "OPENAI_MODEL")
	_ = v.BindEnv("llm.base_url", "AGENT_LLM_BASE_URL", "OPENAI_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("browser.timeout must be positive, got %s", c.Browser.Timeout)
	}
	return nil
}
