package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsHonorsHomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("LARKGPT_HOME", base)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, base, p.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join(base, "data", "history.db"), p.HistoryDB())
}

func TestEnsureDirs(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested")
	t.Setenv("LARKGPT_HOME", base)

	p, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, p.EnsureDirs())

	assert.DirExists(t, p.Logs)
	assert.DirExists(t, p.Data)
}

func TestParseConfigPath(t *testing.T) {
	parts, err := ParseConfigPath("gateway.port")
	require.NoError(t, err)
	assert.Equal(t, []string{"gateway", "port"}, parts)

	_, err = ParseConfigPath("")
	assert.Error(t, err)

	_, err = ParseConfigPath("gateway..port")
	assert.Error(t, err)
}

func TestValuePathHelpers(t *testing.T) {
	root := map[string]any{}

	SetValueAtPath(root, []string{"gateway", "port"}, 9000)
	v, ok := GetValueAtPath(root, []string{"gateway", "port"})
	require.True(t, ok)
	assert.Equal(t, 9000, v)

	assert.True(t, UnsetValueAtPath(root, []string{"gateway", "port"}))
	_, ok = GetValueAtPath(root, []string{"gateway", "port"})
	assert.False(t, ok)

	assert.False(t, UnsetValueAtPath(root, []string{"nope", "x"}))
}
