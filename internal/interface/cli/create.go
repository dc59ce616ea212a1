package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kalinpl/dreamlog/internal/application/service"
	"github.com/kalinpl/dreamlog/internal/infrastructure/di"
)

// newCreateCmd records a journal entry and queues it for processing.
func newCreateCmd() *cobra.Command {
	var (
		userIDStr string
		title     string
		date      string
		moodIn    string
		moodAfter string
		vividness int
		lucid     bool
		tags      []string
	)

	cmd := &cobra.Command{
		Use:   "create [content]",
		Short: "Record a journal entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(userIDStr)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}

			entryDate := time.Now()
			if date != "" {
				entryDate, err = time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date (want YYYY-MM-DD): %w", err)
				}
			}

			c, err := di.NewContainer(globalConfig, globalLogger, di.Options{MockAI: true})
			if err != nil {
				return err
			}
			defer c.Close()

			e, err := c.EntryService().CreateEntry(cmd.Context(), service.CreateEntryInput{
				UserID:         userID,
				Date:           entryDate,
				Title:          title,
				Content:        args[0],
				MoodInDream:    moodIn,
				MoodAfterDream: moodAfter,
				Vividness:      vividness,
				Lucid:          lucid,
				Tags:           tags,
			})
			if err != nil {
				if errors.Is(err, service.ErrRateLimited) {
					return fmt.Errorf("too many entries, try again later")
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created entry %s (%s)\n", e.ID(), e.State())
			if len(tags) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "tags: %s\n", strings.Join(tags, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userIDStr, "user", "", "user ID (UUID)")
	cmd.Flags().StringVar(&title, "title", "", "entry title (derived from content if empty)")
	cmd.Flags().StringVar(&date, "date", "", "entry date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&moodIn, "mood-in-dream", "", "mood felt in the dream")
	cmd.Flags().StringVar(&moodAfter, "mood-after", "", "mood after waking")
	cmd.Flags().IntVar(&vividness, "vividness", 0, "vividness 0-5")
	cmd.Flags().BoolVar(&lucid, "lucid", false, "lucid dream")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "user tag (repeatable)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
