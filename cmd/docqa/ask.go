package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"docqa/internal/app"
	"docqa/internal/domain"
)

var (
	userPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	botPrompt  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("bot> ")
	pageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

var errFailedAnswers = errors.New("some questions could not be answered")

const askLongDesc string = `Upload a document, ask each question in order and print the answers.

Questions share one conversation, so later questions can refer to earlier ones.

Examples:
  docqa ask handbook.pdf "What is the refund policy?"
  docqa ask notes.txt "Who wrote this?" "When?" --no-sources`

const askShortDesc string = "Ask questions about a document and exit"

func newAskCmd() *cobra.Command {
	var noSources bool

	cmd := &cobra.Command{
		Use:   "ask <file> <question>...",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, closeLog, err := newLogger(cfg, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			mgr, err := app.NewManager(cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close(cmd.Context()) }()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sess, err := mgr.Upload(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if sess.Summary != "" {
				fmt.Fprintf(out, "Summary: %s\n\n", sess.Summary)
			}

			failed := false
			for _, q := range args[1:] {
				ans := mgr.Ask(cmd.Context(), q)
				printAnswer(out, q, ans, !noSources)
				if ans.Failed || ans.Err != nil {
					failed = true
				}
			}
			if failed {
				return errFailedAnswers
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSources, "no-sources", false, "Do not print answer sources")
	return cmd
}

func printAnswer(w io.Writer, question string, ans domain.Answer, withSources bool) {
	fmt.Fprintf(w, "%s%s\n", userPrompt, question)
	text := ans.Text
	if text == "" && ans.Err != nil {
		text = ans.Err.Error()
	}
	fmt.Fprintf(w, "%s%s\n", botPrompt, text)
	if withSources {
		for _, s := range ans.Sources {
			fmt.Fprintf(w, "  %s %s\n", pageStyle.Render(fmt.Sprintf("[page %d]", s.Page)), s.Excerpt)
		}
	}
	fmt.Fprintln(w)
}
