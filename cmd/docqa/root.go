package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docqa/internal/config"
	"docqa/internal/logger"
)

const rootLongDesc string = `docqa answers questions about a single document.

Upload a PDF or plain-text file and chat with it:
  docqa chat handbook.pdf          Interactive chat in the terminal
  docqa ask handbook.pdf "..."     Ask one or more questions and exit

Configuration is read from --config, ./config.yaml or ~/.config/docqa/config.yaml.
API keys come from the environment (a .env file is loaded when present).`

const rootShortDesc string = "docqa - chat with a document"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "docqa",
		Short:        rootShortDesc,
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file (defaults to ./config.yaml or ~/.config/docqa/config.yaml)")
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newAskCmd())
	return cmd
}

// loadConfig resolves the config file and applies the --debug flag.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("could not get config flag: %w", err)
	}
	var cfg *config.AppConfig
	if path == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, fmt.Errorf("could not get debug flag: %w", err)
	}
	if debug {
		cfg.Log.Debug = true
	}
	return cfg, nil
}

// newLogger writes to the configured log file when toFile is set, or to w.
// The returned closer releases the file.
func newLogger(cfg *config.AppConfig, toFile bool, w io.Writer) (*zap.Logger, func(), error) {
	if !toFile {
		l := logger.NewWithWriters(cfg.Log.Debug, w)
		return l, func() { _ = l.Sync() }, nil
	}
	path := cfg.Log.File
	if path == "" {
		var err error
		path, err = config.DefaultUserPath("docqa.log")
		if err != nil {
			return nil, nil, err
		}
	}
	f, err := logger.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	l := logger.NewWithWriters(cfg.Log.Debug, f)
	return l, func() {
		_ = l.Sync()
		_ = f.Close()
	}, nil
}
