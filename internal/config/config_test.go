package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jvmmixer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.True(t, cfg.Obfuscation.Indirection.Enabled)
	assert.False(t, cfg.Obfuscation.Crasher.Enabled)
	assert.Equal(t, 32000, cfg.Archive.CommentFiller)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
seed: 1234
hard_exclusions: ["com/vendor/"]
exclusions:
  - com/example/api/
obfuscation:
  indirection:
    enabled: false
    exclusions: ["com/example/Main.main"]
  crasher:
    enabled: true
archive:
  compression: STORE
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), cfg.Seed)
	assert.Equal(t, []string{"com/vendor/"}, cfg.HardExclusions)
	assert.Equal(t, []string{"com/example/api/"}, cfg.Exclusions)
	assert.False(t, cfg.Obfuscation.Indirection.Enabled)
	assert.Equal(t, []string{"com/example/Main.main"}, cfg.Obfuscation.Indirection.Exclusions)
	assert.True(t, cfg.Obfuscation.Crasher.Enabled)
	assert.True(t, cfg.Obfuscation.Shuffle.Enabled, "unset keys keep their defaults")
	assert.Equal(t, CompressionStore, cfg.Archive.Compression, "compression is normalized")
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad compression", "archive:\n  compression: lzma\n"},
		{"comment too long", "archive:\n  comment_filler: 70000\n"},
		{"malformed yaml", "obfuscation: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("JVMMIXER_OBFUSCATION_CRASHER_ENABLED", "true")
	t.Setenv("JVMMIXER_SEED", "99")
	t.Setenv("JVMMIXER_EXCLUSIONS", "com/a/, com/b/ ,")
	t.Setenv("JVMMIXER_ARCHIVE_COMPRESSION", "store")

	path := writeConfig(t, "seed: 5\nobfuscation:\n  crasher:\n    enabled: false\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Obfuscation.Crasher.Enabled)
	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, []string{"com/a/", "com/b/"}, cfg.Exclusions)
	assert.Equal(t, CompressionStore, cfg.Archive.Compression)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
