package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	grayColor   = color.New(color.FgHiBlack).SprintFunc()
)

func newJournalCmd(flags *flagValues) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}
			boltDB, err := cfg.openJournal()
			if err != nil {
				return err
			}
			defer boltDB.Close()

			drafts, err := boltDB.Drafts(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(drafts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No drafts yet.")
				return nil
			}
			for _, d := range drafts {
				printDraftSummary(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of drafts to list, 0 for all")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show ID",
			Short: "Print one draft",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(*flags)
				if err != nil {
					return err
				}
				boltDB, err := cfg.openJournal()
				if err != nil {
					return err
				}
				defer boltDB.Close()

				d, err := boltDB.Draft(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printDraft(cmd.OutOrStdout(), d)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Remove one draft",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(*flags)
				if err != nil {
					return err
				}
				boltDB, err := cfg.openJournal()
				if err != nil {
					return err
				}
				defer boltDB.Close()

				return boltDB.DeleteDraft(cmd.Context(), args[0])
			},
		},
	)

	return cmd
}

func statusColor(s models.Status) *color.Color {
	switch s {
	case models.StatusSucceeded:
		return color.New(color.FgGreen)
	case models.StatusCancelled:
		return color.New(color.FgYellow)
	case models.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

func printDraftSummary(w io.Writer, d models.Draft) {
	reply := strings.ReplaceAll(models.Preview(d.Reply()), "\n", " ")
	fmt.Fprintf(w, "%s %s %s\n", headerColor(d.ID), statusColor(d.Status).Sprint(d.Status), grayColor(d.StartedAt.Format("2006-01-02 15:04")))
	fmt.Fprintf(w, "  %s\n", grayColor(d.Instruction))
	fmt.Fprintf(w, "  %s\n\n", reply)
}

func printDraft(w io.Writer, d models.Draft) {
	fmt.Fprintf(w, "%s %s\n", headerColor(d.ID), statusColor(d.Status).Sprint(d.Status))
	fmt.Fprintf(w, "%s %s, %s, %d fragments, %d skipped\n",
		grayColor("model"), d.Model, d.Duration().Round(10*time.Millisecond), d.Fragments, d.Skipped)
	fmt.Fprintf(w, "\n%s\n%s\n", headerColor("Message"), d.OriginalMessage)
	fmt.Fprintf(w, "\n%s\n%s\n", headerColor("Instruction"), d.Instruction)
	fmt.Fprintf(w, "\n%s\n%s\n", headerColor("Reply"), d.Reply())
	if d.ErrorDetail != "" {
		color.New(color.FgRed).Fprintf(w, "\n%s\n", d.ErrorDetail)
	}
}
