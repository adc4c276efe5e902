package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docqa/internal/app"
	"docqa/internal/tui"
)

const chatLongDesc string = `Start an interactive chat about a document.

The document given as argument is uploaded on start; any other file can be
uploaded later with /open <path>. Uploading replaces the current document and
starts a new conversation.

Commands inside the chat:
  /open <path>   upload a document
  /sources       show or hide answer sources
  /reset         start a new conversation about the same document
  /quit          leave (or ctrl+c)

Logs are written to log.file (default ~/.config/docqa/docqa.log).`

const chatShortDesc string = "Interactive chat about a document"

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [file]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, closeLog, err := newLogger(cfg, true, nil)
			if err != nil {
				return err
			}
			defer closeLog()

			mgr, err := app.NewManager(cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close(context.Background()) }()

			var path string
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := tea.NewProgram(tui.New(mgr, path), tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("running chat: %w", err)
			}
			return nil
		},
	}
}
