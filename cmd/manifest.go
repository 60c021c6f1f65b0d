package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"actionlift.dev/pkg/actionlift/internal/domain"
	m "actionlift.dev/pkg/actionlift/internal/model"
)

// manifestCmd represents the manifest command.
var manifestCmd = newManifestCmd()

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest [file]",
		Short: "Show the action directory written by the last transform",
		Long: `Show the merged action directory written by transform. Without an argument
the configured manifest.file is read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := manifestPath(viper.GetString(manifestFileKey), viper.GetString(manifestFormatKey))
			if len(args) == 1 {
				file = args[0]
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			return newWorkflow(nil).Manifest(ctx, domain.ManifestArgs{File: m.Path(file)})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}
