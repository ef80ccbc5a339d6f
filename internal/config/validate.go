package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"lan", "loopback"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	validBackends := []string{"sqlite", "mongo"}
	if cfg.History.Backend != "" && !slices.Contains(validBackends, cfg.History.Backend) {
		issues = append(issues, ValidationIssue{
			Path:    "history.backend",
			Message: fmt.Sprintf("must be one of %v, got %q", validBackends, cfg.History.Backend),
		})
	}
	if cfg.History.Backend == "mongo" && cfg.History.Mongo.URI == "" {
		issues = append(issues, ValidationIssue{
			Path:    "history.mongo.uri",
			Message: "required when history.backend is mongo",
		})
	}

	if cfg.History.Window < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "history.window",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.History.Window),
		})
	}

	if cfg.Throttle.GapMillis < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "throttle.gapMillis",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Throttle.GapMillis),
		})
	}

	if cfg.Search.Enabled {
		if cfg.Search.APIKey == "" {
			issues = append(issues, ValidationIssue{
				Path:    "search.apiKey",
				Message: "required when search is enabled",
			})
		}
		if cfg.Search.EngineID == "" {
			issues = append(issues, ValidationIssue{
				Path:    "search.engineId",
				Message: "required when search is enabled",
			})
		}
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}

// ValidateCredentials checks fields the gateway cannot run without.
func ValidateCredentials(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Lark.AppID == "" {
		issues = append(issues, ValidationIssue{Path: "lark.appId", Message: "required"})
	}
	if cfg.Lark.AppSecret == "" {
		issues = append(issues, ValidationIssue{Path: "lark.appSecret", Message: "required"})
	}
	if cfg.OpenAI.APIKey == "" {
		issues = append(issues, ValidationIssue{Path: "openai.apiKey", Message: "required"})
	}

	return issues
}
