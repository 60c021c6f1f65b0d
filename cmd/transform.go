package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"actionlift.dev/pkg/actionlift/internal/domain"
	m "actionlift.dev/pkg/actionlift/internal/model"
)

var transformParallelFlag int
var transformKeepGoingFlag bool
var transformStdoutFlag bool
var transformDiffFlag bool

// transformCmd represents the transform command.
var transformCmd = newTransformCmd()

func newTransformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform [paths...]",
		Short: "Compile server actions",
		Long:  transformLongDescription,
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

			return newWorkflow(cache).Transform(ctx, transformArgs(settings, args))
		},
	}

	configureTransformFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(transformCmd)
}

func configureTransformFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&transformParallelFlag, parallelFlagName, "p", viper.GetInt(parallelConfigKey), "number of files transformed in parallel (0: one per CPU)")
	bindFlagToConfig(cmd.Flags().Lookup(parallelFlagName), parallelConfigKey)

	cmd.Flags().BoolVar(&transformKeepGoingFlag, keepGoingFlagName, viper.GetBool(keepGoingConfigKey), "keep transforming after a file is rejected")
	bindFlagToConfig(cmd.Flags().Lookup(keepGoingFlagName), keepGoingConfigKey)

	cmd.Flags().BoolVar(&transformStdoutFlag, "stdout", false, "print transformed files instead of writing them")
	cmd.Flags().BoolVar(&transformDiffFlag, "diff", false, "print unified diffs instead of writing files")
	cmd.MarkFlagsMutuallyExclusive("stdout", "diff")
}

func transformArgs(s Settings, args []string) domain.TransformArgs {
	return domain.TransformArgs{
		Paths:         parsePaths(args),
		Filter:        filterFrom(s),
		Pass:          passFrom(s),
		Output:        m.Path(s.Output),
		Stdout:        transformStdoutFlag,
		Diff:          transformDiffFlag,
		Threads:       s.Parallel,
		KeepGoing:     s.KeepGoing,
		UseCache:      !s.NoCache,
		DirectoryFile: m.Path(s.ManifestFile),
	}
}

// signalContext returns the command context cancelled on interrupt.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
