package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config dir at a temp dir and clears the variables loadConfig reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("DWB_OLLAMA_URL", "")
	t.Setenv("DWB_MODEL", "")
	t.Setenv("OLLAMA_HOST", "")
	return filepath.Join(dir, configDirName)
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfgDir := isolate(t)

	cfg, err := loadConfig(flagValues{})
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, providerOllama, cfg.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.Host)
	assert.Equal(t, "qwen2.5:0.5b", cfg.Model)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, filepath.Join(cfgDir, "journal.db"), cfg.JournalPath)
}

func TestLoadConfigPrecedence(t *testing.T) {
	cfgDir := isolate(t)
	writeConfig(t, filepath.Join(cfgDir, "config.yaml"), `
port: "9090"
provider: openai
host: http://file:1234
model: file-model
requestTimeout: 90s
logLevel: debug
`)

	cfg, err := loadConfig(flagValues{})
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, providerOpenAI, cfg.Provider)
	assert.Equal(t, "http://file:1234", cfg.Host)
	assert.Equal(t, "file-model", cfg.Model)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv("DWB_OLLAMA_URL", "http://env:1234")
	t.Setenv("DWB_MODEL", "env-model")

	cfg, err = loadConfig(flagValues{})
	require.NoError(t, err)
	assert.Equal(t, "http://env:1234", cfg.Host)
	assert.Equal(t, "env-model", cfg.Model)

	cfg, err = loadConfig(flagValues{host: "http://flag:1234", model: "flag-model", requestTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "http://flag:1234", cfg.Host)
	assert.Equal(t, "flag-model", cfg.Model)
	assert.Equal(t, time.Second, cfg.RequestTimeout)
}

func TestLoadConfigOllamaHostFallback(t *testing.T) {
	isolate(t)
	t.Setenv("OLLAMA_HOST", "example.com:1234")

	cfg, err := loadConfig(flagValues{})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:1234", cfg.Host)

	t.Setenv("DWB_OLLAMA_URL", "http://preferred:11434")
	cfg, err = loadConfig(flagValues{})
	require.NoError(t, err)
	assert.Equal(t, "http://preferred:11434", cfg.Host)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		flags  flagValues
	}{
		{
			name:   "Unknown provider",
			config: "provider: anthropic\n",
		},
		{
			name:   "Invalid log level",
			config: "logLevel: loud\n",
		},
		{
			name:   "Malformed file",
			config: "port: [\n",
		},
		{
			name:  "Unknown provider flag",
			flags: flagValues{provider: "gemini"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgDir := isolate(t)
			if tt.config != "" {
				writeConfig(t, filepath.Join(cfgDir, "config.yaml"), tt.config)
			}

			_, err := loadConfig(tt.flags)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigExplicitFile(t *testing.T) {
	isolate(t)

	_, err := loadConfig(flagValues{configPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeConfig(t, path, "model: custom\n")

	cfg, err := loadConfig(flagValues{configPath: path})
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Model)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfgDir := isolate(t)
	writeConfig(t, filepath.Join(cfgDir, "config.yaml"), "")

	cfg, err := loadConfig(flagValues{})
	require.NoError(t, err)
	assert.Equal(t, defaultModel, cfg.Model)
}
