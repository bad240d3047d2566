// Command draftwriter drafts replies to messages with a local language model, from a web page or the terminal.
package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// flagValues holds the global flags. Empty values leave the configuration untouched.
type flagValues struct {
	configPath     string
	provider       string
	host           string
	model          string
	logLevel       string
	port           string
	requestTimeout time.Duration
}

// errDraftFailed makes the process exit with status 1 after the failure has already been printed.
var errDraftFailed = errors.New("draft failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errDraftFailed) {
			color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &flagValues{}

	cmd := &cobra.Command{
		Use:   "draftwriter",
		Short: "Draft replies to messages with a local language model",
		Long: `draftwriter turns a received message and a short instruction into a reply draft,
streamed from a local Ollama server or any OpenAI-compatible server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&flags.configPath, "config", "", "config file (default $UserConfigDir/draftwriter/config.yaml)")
	f.StringVar(&flags.provider, "provider", "", "inference server API: ollama or openai")
	f.StringVar(&flags.host, "host", "", "inference server URL")
	f.StringVarP(&flags.model, "model", "M", "", "model name")
	f.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.DurationVar(&flags.requestTimeout, "timeout", 0, "time to wait for the server to start answering")

	cmd.AddCommand(
		newServeCmd(flags),
		newDraftCmd(flags),
		newPingCmd(flags),
		newJournalCmd(flags),
	)

	return cmd
}

// loadConfig resolves the configuration: defaults, then the config file, then the environment, then flags.
func loadConfig(flags flagValues) (config, error) {
	cfgDir, err := defaultConfigDir()
	if err != nil {
		return config{}, err
	}

	path := flags.configPath
	required := path != ""
	if !required {
		path = filepath.Join(cfgDir, "config.yaml")
	}

	var cfg config
	if err := readConfigFile(path, &cfg, required); err != nil {
		return config{}, err
	}
	cfg.applyEnv()
	cfg.applyFlags(flags)
	cfg.fillDefaults(cfgDir)

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}
