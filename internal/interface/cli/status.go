package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kalinpl/dreamlog/internal/domain/repository"
	"github.com/kalinpl/dreamlog/internal/infrastructure/di"
)

// newStatusCmd shows the processing state of an entry.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <entry-id>",
		Short: "Show the processing state of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entry ID: %w", err)
			}

			c, err := di.NewContainer(globalConfig, globalLogger, di.Options{MockAI: true})
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			e, err := c.EntryService().GetEntry(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrEntryNotFound) {
					return fmt.Errorf("no entry with ID %s", id)
				}
				return err
			}

			fmt.Fprintf(out, "Entry:   %s\n", e.ID())
			fmt.Fprintf(out, "Title:   %s\n", e.Title())
			fmt.Fprintf(out, "Date:    %s\n", e.Date().Format("2006-01-02"))
			fmt.Fprintf(out, "State:   %s\n", e.State())
			if e.AttemptCount() > 0 {
				fmt.Fprintf(out, "Attempts: %d\n", e.AttemptCount())
			}
			if e.FailureReason() != "" {
				fmt.Fprintf(out, "Failure: %s\n", e.FailureReason())
			}

			a, err := c.EntryService().GetAnalysis(ctx, id)
			switch {
			case err == nil:
				fmt.Fprintf(out, "\nSummary: %s\n", a.Summary())
				if len(a.Tags()) > 0 {
					fmt.Fprintf(out, "Tags:    %s\n", strings.Join(a.Tags(), ", "))
				}
				fmt.Fprintf(out, "Emotion: %s\n", a.PrimaryEmotion())
			case errors.Is(err, repository.ErrAnalysisNotFound):
				// not analyzed yet
			default:
				return err
			}

			if e.HasImage() {
				fmt.Fprintf(out, "\nImage:   %s\n", e.ImageURL())
			}
			return nil
		},
	}
}
