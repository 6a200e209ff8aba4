package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default agent identity, matching the original joke-telling agent.
const (
	DefaultAgentName    = "Joker"
	DefaultInstructions = "You are good at telling jokes."
	DefaultTimeout      = 60 * time.Second
)

// Config holds the application configuration
type Config struct {
	LLM           LLMConfig           `mapstructure:"llm"`
	Agent         AgentConfig         `mapstructure:"agent"`
	Log           LogConfig           `mapstructure:"log"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// LLMConfig holds the chat-completion backend configuration.
// An empty BaseURL selects the hosted OpenAI API.
type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	OrgID   string        `mapstructure:"org_id"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Hosted reports whether the default hosted provider is used.
func (c LLMConfig) Hosted() bool {
	return strings.TrimSpace(c.BaseURL) == ""
}

// AgentConfig holds the static identity of the chat agent.
type AgentConfig struct {
	Name         string `mapstructure:"name"`
	Instructions string `mapstructure:"instructions"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds the OpenTelemetry tracing configuration.
type ObservabilityConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Endpoint      string `mapstructure:"endpoint"`
	ServiceName   string `mapstructure:"service_name"`
	Insecure      bool   `mapstructure:"insecure"`
	SensitiveData bool   `mapstructure:"sensitive_data"`
}

var envBindings = map[string]string{
	"llm.base_url":                 "OPENAI_BASE_URL",
	"llm.api_key":                  "OPENAI_API_KEY",
	"llm.model":                    "OPENAI_CHAT_MODEL_ID",
	"llm.org_id":                   "OPENAI_ORG_ID",
	"log.level":                    "LOG_LEVEL",
	"log.format":                   "LOG_FORMAT",
	"observability.enabled":        "ENABLE_OTEL",
	"observability.endpoint":       "OTEL_EXPORTER_OTLP_ENDPOINT",
	"observability.service_name":   "OTEL_SERVICE_NAME",
	"observability.insecure":       "OTEL_EXPORTER_OTLP_INSECURE",
	"observability.sensitive_data": "ENABLE_SENSITIVE_DATA",
}

// Load loads the configuration from config.yaml (or the file named by
// CONFIG_PATH) and the process environment. Environment values take
// precedence over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("agent.name", DefaultAgentName)
	v.SetDefault("agent.instructions", DefaultInstructions)
	v.SetDefault("llm.timeout", DefaultTimeout)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("observability.service_name", "joker")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &config, nil
}
