package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/generation"
	"github.com/MegaGrindStone/draft-writer/internal/services"
	"github.com/ollama/ollama/envconfig"
	"gopkg.in/yaml.v3"
)

// backend is an inference server client: it streams replies and answers health checks.
type backend interface {
	generation.LLM
	Ping(ctx context.Context, serverURL string) (string, error)
}

type config struct {
	Port           string        `yaml:"port"`
	Provider       string        `yaml:"provider"`
	Host           string        `yaml:"host"`
	Model          string        `yaml:"model"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	LogLevel       string        `yaml:"logLevel"`
	JournalPath    string        `yaml:"journalPath"`
}

const (
	providerOllama = "ollama"
	providerOpenAI = "openai"

	defaultPort     = "8080"
	defaultHost     = "http://localhost:11434"
	defaultModel    = "qwen2.5:0.5b"
	defaultLogLevel = "info"

	configDirName = "draftwriter"
)

func defaultConfigDir() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, configDirName), nil
}

// readConfigFile decodes the YAML file at path over cfg. A missing file is only an error when required is set,
// that is when the user named the file explicitly.
func readConfigFile(path string, cfg *config, required bool) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("error decoding config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides the server URL and model from the environment. OLLAMA_HOST is only consulted when nothing
// else named a server.
func (c *config) applyEnv() {
	if v := os.Getenv("DWB_OLLAMA_URL"); v != "" {
		c.Host = v
	} else if c.Host == "" && os.Getenv("OLLAMA_HOST") != "" {
		c.Host = envconfig.Host().String()
	}
	if v := os.Getenv("DWB_MODEL"); v != "" {
		c.Model = v
	}
}

// applyFlags overrides the configuration with every flag the user set.
func (c *config) applyFlags(f flagValues) {
	if f.provider != "" {
		c.Provider = f.provider
	}
	if f.host != "" {
		c.Host = f.host
	}
	if f.model != "" {
		c.Model = f.model
	}
	if f.logLevel != "" {
		c.LogLevel = f.logLevel
	}
	if f.requestTimeout > 0 {
		c.RequestTimeout = f.requestTimeout
	}
	if f.port != "" {
		c.Port = f.port
	}
}

// fillDefaults sets every field still empty after file, environment and flags.
func (c *config) fillDefaults(cfgDir string) {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.Provider == "" {
		c.Provider = providerOllama
	}
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = services.DefaultRequestTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.JournalPath == "" {
		c.JournalPath = filepath.Join(cfgDir, "journal.db")
	}
}

func (c config) validate() error {
	switch c.Provider {
	case providerOllama, providerOpenAI:
	default:
		return fmt.Errorf("unknown llm provider: %s", c.Provider)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must not be negative, got %s", c.RequestTimeout)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid logLevel %q: %w", c.LogLevel, err)
	}
	return l, nil
}

func (c config) logger(w io.Writer) *slog.Logger {
	l, err := c.level()
	if err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func (c config) backend(logger *slog.Logger) backend {
	if c.Provider == providerOpenAI {
		return services.NewOpenAI(c.RequestTimeout, logger)
	}
	return services.NewOllama(c.RequestTimeout, logger)
}

func (c config) generationConfig() generation.Config {
	return generation.Config{
		Model:     c.Model,
		ServerURL: c.Host,
	}
}

func (c config) openJournal() (services.BoltDB, error) {
	if err := os.MkdirAll(filepath.Dir(c.JournalPath), 0755); err != nil {
		return services.BoltDB{}, fmt.Errorf("error creating journal directory: %w", err)
	}
	return services.NewBoltDB(c.JournalPath)
}
