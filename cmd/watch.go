package cmd

import (
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command.
var watchCmd = newWatchCmd()

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Re-compile server actions as files change",
		Long:  watchLongDescription,
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

			wargs := transformArgs(settings, args)
			// Rejected files are reported and retried on their next change.
			wargs.KeepGoing = true
			wargs.Stdout = false
			wargs.Diff = false

			return newWorkflow(cache).Watch(ctx, wargs)
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
