package cmd

import (
	"github.com/spf13/cobra"

	"actionlift.dev/pkg/actionlift/internal/domain"
)

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List source files and their server actions",
		Long:  listLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			cache, closeCache, err := openCache(settings)
			if err != nil {
				return err
			}
			defer closeCache()

			return newWorkflow(cache).List(ctx, domain.ListArgs{
				Paths:    parsePaths(args),
				Filter:   filterFrom(settings),
				Pass:     passFrom(settings),
				Threads:  settings.Parallel,
				UseCache: !settings.NoCache,
			})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
