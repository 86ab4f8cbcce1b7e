package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Analysis.CheckUnusedMembers)
	assert.Contains(t, cfg.Analysis.SafeTypes, "std::string")
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 24, cfg.Cache.TTL)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Contains(t, cfg.Exclude.Dirs, "vendor")
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "varflow.toml", `
[analysis]
safe_types = ["MyHandle"]
jobs = 4

[cache]
enabled = false

[output]
format = "json"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"MyHandle"}, cfg.Analysis.SafeTypes)
	assert.Equal(t, 4, cfg.Analysis.Jobs)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "json", cfg.Output.Format)
	// Untouched sections keep defaults.
	assert.Contains(t, cfg.Exclude.Dirs, "vendor")
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "varflow.yaml", `
analysis:
  check_unused_members: false
output:
  verbose: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Analysis.CheckUnusedMembers)
	assert.True(t, cfg.Output.Verbose)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "varflow.json", `{"cache": {"ttl": 48}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 48, cfg.Cache.TTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadConfigWithPath(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.toml", `
[analysis]
jobs = 2
`)
	result, err := LoadConfig(WithPath(path))
	require.NoError(t, err)
	assert.Equal(t, path, result.Source)
	assert.Equal(t, 2, result.Config.Analysis.Jobs)
}

func TestLoadConfigDefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	result, err := LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, result.Source)
	assert.True(t, result.Config.Cache.Enabled)
}

func TestIsSafeType(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.IsSafeType("std::string"))
	assert.False(t, cfg.IsSafeType("Widget"))
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		path string
		want bool
	}{
		{"src/main.c", false},
		{"vendor/lib/x.c", true},
		{filepath.Join("a", "node_modules", "b", "x.c"), true},
		{"src/parser.c", false},
		{"parser_test.c", true}, // *_test.c pattern
		{"deps.lock", true},     // excluded extension
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ShouldExclude(tt.path))
		})
	}
}
