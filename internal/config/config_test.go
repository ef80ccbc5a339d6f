package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, "lan", cfg.Gateway.Bind)
	assert.Equal(t, "sqlite", cfg.History.Backend)
	assert.Equal(t, 6, cfg.History.Window)
	assert.Equal(t, 700, cfg.Throttle.GapMillis)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.Model)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
gateway:
  port: 9000
openai:
  model: gpt-4
history:
  backend: mongo
  mongo:
    uri: mongodb://localhost:27017
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Gateway.Port)
	assert.Equal(t, "gpt-4", cfg.OpenAI.Model)
	assert.Equal(t, "mongo", cfg.History.Backend)
	// Untouched fields keep defaults.
	assert.Equal(t, "lan", cfg.Gateway.Bind)
	assert.Equal(t, 700, cfg.Throttle.GapMillis)
}

func TestLoadExpandsEnvInSecrets(t *testing.T) {
	t.Setenv("TEST_LARK_SECRET", "s3cret")
	path := writeConfig(t, `
lark:
  appId: cli_x
  appSecret: ${TEST_LARK_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Lark.AppSecret)
}

func TestLoadLeavesUnsetEnvReferences(t *testing.T) {
	path := writeConfig(t, `
openai:
  apiKey: ${DEFINITELY_NOT_SET_12345}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${DEFINITELY_NOT_SET_12345}", cfg.OpenAI.APIKey)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LARKGPT_GATEWAY_PORT", "9999")
	t.Setenv("LARKGPT_LOG_LEVEL", "DEBUG")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "gateway: [not a map")
	_, err := Load(path)
	require.Error(t, err)
	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))

	cfg.Gateway.Port = 99999
	cfg.Gateway.Bind = "everywhere"
	cfg.History.Backend = "redis"
	cfg.Logging.Level = "shout"
	issues := Validate(&cfg)
	require.Len(t, issues, 4)

	paths := make([]string, len(issues))
	for i, is := range issues {
		paths[i] = is.Path
	}
	assert.Contains(t, paths, "gateway.port")
	assert.Contains(t, paths, "gateway.bind")
	assert.Contains(t, paths, "history.backend")
	assert.Contains(t, paths, "logging.level")
}

func TestValidateMongoRequiresURI(t *testing.T) {
	cfg := Defaults()
	cfg.History.Backend = "mongo"
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "history.mongo.uri", issues[0].Path)
}

func TestValidateSearchRequiresKeys(t *testing.T) {
	cfg := Defaults()
	cfg.Search.Enabled = true
	assert.Len(t, Validate(&cfg), 2)

	cfg.Search.APIKey = "k"
	cfg.Search.EngineID = "cx"
	assert.Empty(t, Validate(&cfg))
}

func TestValidateCredentials(t *testing.T) {
	cfg := Defaults()
	assert.Len(t, ValidateCredentials(&cfg), 3)

	cfg.Lark.AppID = "cli_x"
	cfg.Lark.AppSecret = "s"
	cfg.OpenAI.APIKey = "sk-x"
	assert.Empty(t, ValidateCredentials(&cfg))
}
