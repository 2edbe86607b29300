// Package config holds the viper-backed application configuration.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// AMI0_AGENT_LLM_API_KEY for agent.llm.api_key.
const EnvPrefix = "AMI0"

// Config is the root application configuration.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Agent  AgentConfig  `mapstructure:"agent" yaml:"agent"`
	Apps   AppsConfig   `mapstructure:"apps" yaml:"apps"`
}

// LoggerConfig configures the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// AgentConfig configures the agent loop and its LLM transport.
type AgentConfig struct {
	LLM LLMConfig `mapstructure:"llm" yaml:"llm"`
	// HistoryWindow is the number of trailing conversation messages sent to
	// the model each turn.
	HistoryWindow int `mapstructure:"history_window" yaml:"history_window"`
	// MaxTurns bounds the loop; 0 means run until interrupted.
	MaxTurns int `mapstructure:"max_turns" yaml:"max_turns"`
	// ConfirmDefault is the answer a blank confirmation input resolves to.
	ConfirmDefault bool `mapstructure:"confirm_default" yaml:"confirm_default"`
}

// LLMProvider identifies a supported LLM backend.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig defines the connection to a single LLM.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// RequestsPerMinute rate-limits outgoing generation calls.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// AppsConfig configures the app roster.
type AppsConfig struct {
	Echo    EchoConfig    `mapstructure:"echo" yaml:"echo"`
	SSH     SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
}

// EchoConfig configures the echo app.
type EchoConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// SSHConfig configures the remote shell app.
type SSHConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	// CommandTimeout caps each remote command instead of waiting forever.
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// Addr returns the host:port dial address.
func (c SSHConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BrowserConfig configures the text browser app.
type BrowserConfig struct {
	Enabled            bool          `mapstructure:"enabled" yaml:"enabled"`
	Headless           bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent          string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	CaptureScreenshots bool          `mapstructure:"capture_screenshots" yaml:"capture_screenshots"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ami0")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Agent --
	v.SetDefault("agent.history_window", 10)
	v.SetDefault("agent.max_turns", 0)
	v.SetDefault("agent.confirm_default", true)
	v.SetDefault("agent.llm.provider", string(ProviderGemini))
	v.SetDefault("agent.llm.model", "gemini-2.0-flash")
	// Secrets and endpoints default to empty so environment overrides
	// (e.g. AMI0_AGENT_LLM_API_KEY) are visible to Unmarshal.
	v.SetDefault("agent.llm.api_key", "")
	v.SetDefault("agent.llm.endpoint", "")
	v.SetDefault("agent.llm.api_timeout", 60*time.Second)
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.max_tokens", 2048)
	v.SetDefault("agent.llm.requests_per_minute", 30)

	// -- Apps --
	v.SetDefault("apps.echo.enabled", true)
	v.SetDefault("apps.ssh.enabled", false)
	v.SetDefault("apps.ssh.host", "localhost")
	v.SetDefault("apps.ssh.port", 2222)
	v.SetDefault("apps.ssh.username", "root")
	v.SetDefault("apps.ssh.password", "")
	v.SetDefault("apps.ssh.command_timeout", 60*time.Second)
	v.SetDefault("apps.browser.enabled", false)
	v.SetDefault("apps.browser.headless", true)
	v.SetDefault("apps.browser.navigation_timeout", 30*time.Second)
	v.SetDefault("apps.browser.capture_screenshots", false)
	v.SetDefault("apps.browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36")
}

// NewDefaultConfig returns a Config populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Unreachable with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Bind wires defaults, the config file search path and the environment into
// the given viper instance. cfgFile, if non-empty, pins an explicit file.
func Bind(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ami0"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and env vars apply.
	}
	return nil
}

// Load reads configuration from the file, environment and defaults into a
// Config value.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if err := Bind(v, cfgFile); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
