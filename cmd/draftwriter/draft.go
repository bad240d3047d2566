package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/generation"
	"github.com/MegaGrindStone/draft-writer/internal/models"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// terminalListener prints a session to the terminal: a spinner until the first fragment, the fragments as they
// arrive on out, and the final status on status.
type terminalListener struct {
	out    io.Writer
	status io.Writer
	s      *spinner.Spinner

	stopOnce sync.Once
}

func newDraftCmd(flags *flagValues) *cobra.Command {
	var (
		message     string
		instruction string
		noJournal   bool
	)

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Draft one reply in the terminal",
		Long: `Draft one reply to MESSAGE following INSTRUCTION. The reply is streamed to stdout;
press Ctrl+C to cancel. The command exits with status 1 when generation fails.`,
		Example: `  draftwriter draft -m "Are you free for lunch tomorrow?" -i "Decline politely"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}
			logger := cfg.logger(cmd.ErrOrStderr())

			var journal generation.Journal
			if !noJournal {
				boltDB, err := cfg.openJournal()
				if err != nil {
					logger.Warn("Drafting without journal", slog.String(errLoggerKey, err.Error()))
				} else {
					defer boltDB.Close()
					journal = boltDB
				}
			}

			listener := newTerminalListener(cmd.OutOrStdout(), cmd.ErrOrStderr())
			generator := generation.NewGenerator(cfg.backend(logger), listener, journal, cfg.generationConfig(), logger)

			return runDraft(generator, listener, message, instruction)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "the message to reply to")
	cmd.Flags().StringVarP(&instruction, "instruction", "i", "", "how the reply should sound")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "do not record the draft in the journal")

	return cmd
}

func runDraft(generator *generation.Generator, listener *terminalListener, message, instruction string) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	listener.start()
	s, err := generator.Generate(message, instruction)
	if err != nil {
		listener.stopSpinner()
		return err
	}

	select {
	case <-s.Done():
	case <-interrupt:
		s.Cancel()
		s.Wait()
	}

	if s.Status() == models.StatusFailed {
		return errDraftFailed
	}
	return nil
}

func newTerminalListener(out, status io.Writer) *terminalListener {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(status))
	s.Suffix = " Drafting..."
	_ = s.Color("fgHiMagenta", "bold")

	return &terminalListener{
		out:    out,
		status: status,
		s:      s,
	}
}

func (t *terminalListener) start() {
	t.s.Start()
}

func (t *terminalListener) stopSpinner() {
	t.stopOnce.Do(func() {
		if t.s.Active() {
			t.s.Stop()
		}
	})
}

func (t *terminalListener) OnFragment(_, text string) {
	t.stopSpinner()
	fmt.Fprint(t.out, text)
}

func (t *terminalListener) OnStatusChange(_ string, status models.Status, detail string) {
	if !status.Terminal() {
		return
	}
	t.stopSpinner()
	fmt.Fprintln(t.out)

	switch status {
	case models.StatusSucceeded:
		color.New(color.FgGreen).Fprintln(t.status, "Done.")
	case models.StatusCancelled:
		color.New(color.FgYellow).Fprintln(t.status, "Cancelled.")
	case models.StatusFailed:
		color.New(color.FgRed, color.Bold).Fprintf(t.status, "Failed: %s\n", detail)
	}
}
