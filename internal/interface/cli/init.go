package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalinpl/dreamlog/internal/embed"
	"github.com/kalinpl/dreamlog/internal/infrastructure/di"
)

// newInitCmd writes a starter config and creates the database schema.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config and initialize the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := embed.WriteTemplates(".")
			if err != nil {
				return err
			}
			for _, path := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			}

			c, err := di.NewContainer(globalConfig, globalLogger, di.Options{MockAI: true})
			if err != nil {
				return err
			}
			defer c.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "database ready at %s\n", globalConfig.DBPath())
			return nil
		},
	}
}
