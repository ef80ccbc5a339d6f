// Package config loads and validates the larkgpt YAML configuration.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 8080,
			Bind: "lan",
		},
		Lark: LarkConfig{
			RateLimit: 5,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-3.5-turbo",
		},
		History: HistoryConfig{
			Backend: "sqlite",
			Window:  6,
		},
		Throttle: ThrottleConfig{
			GapMillis: 700,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
