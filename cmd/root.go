// Package cmd provides the root command and CLI setup for actionlift.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"actionlift.dev/pkg/actionlift/internal/adapter"
	"actionlift.dev/pkg/actionlift/internal/controller"
	"actionlift.dev/pkg/actionlift/internal/domain"
	m "actionlift.dev/pkg/actionlift/internal/model"
)

var sourceFSAdapter adapter.SourceFSAdapter
var scriptAdapter adapter.ScriptAdapter
var directoryStore adapter.DirectoryStore
var watcher adapter.Watcher
var transformer domain.Transformer
var ui controller.UI

// newWorkflow builds the workflow for one command run around cache, which may be nil.
var newWorkflow = func(cache adapter.CacheStore) domain.Workflow {
	return domain.NewWorkflow(sourceFSAdapter, directoryStore, watcher, ui, transformer, cache)
}

// outputDirFlag is a root-level flag for the transformed files directory.
var outputDirFlag string

// noCacheFlag disables the transform cache when set.
var noCacheFlag bool

// includePatterns and excludePatterns filter discovered files.
var includePatterns []string
var excludePatterns []string

// projectRootFlag overrides package.json discovery for file identities.
var projectRootFlag string

var verboseFlag bool
var logFileFlag string

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	sourceFSAdapter = adapter.NewLocalSourceFSAdapter()
	scriptAdapter = adapter.NewLocalScriptAdapter()
	directoryStore = adapter.NewLocalDirectoryStore()
	watcher = adapter.NewFSWatcher(adapter.DefaultDebounce)
	transformer = domain.NewTransformer(sourceFSAdapter, scriptAdapter)
}

const pathPatternsHelp = `Supports path patterns:
  - ./...          recursively scan current directory
  - ./app/...      recursively scan app directory
  - ./app ./lib    scan multiple directories
  - app/actions.ts a single file`

const rootLongDescription = `Actionlift compiles "use server" functions in JavaScript and TypeScript
sources into registered server actions: closures are hoisted to module
scope with their captured variables passed explicitly, exports are
normalized, and every action is recorded in a per-file manifest and a
project-wide action directory.

` + pathPatternsHelp

const transformLongDescription = `Transform the given paths (default: current directory) and write the
results under the output directory, mirroring the project layout.

` + pathPatternsHelp

const listLongDescription = `List source files and the server actions they register without writing output.

` + pathPatternsHelp

const watchLongDescription = `Transform the given paths, then re-transform files as they change.

` + pathPatternsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "actionlift",
		Short:         "Server action compiler for JavaScript and TypeScript",
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(logFileFlag, verboseFlag)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&outputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for transformed files",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().BoolVar(&noCacheFlag, noCacheFlagName, viper.GetBool(noCacheFlagName), "disable the transform cache (re-transform everything)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(noCacheFlagName), noCacheFlagName)

	cmd.PersistentFlags().StringArrayVarP(&includePatterns, includeFlagName, "i", viper.GetStringSlice(includeConfigKey), "only transform files matching glob (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(includeFlagName), includeConfigKey)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files matching glob (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().StringVar(&projectRootFlag, rootFlagName, viper.GetString(projectRootKey), "project root file identities are relative to (default: nearest package.json)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(rootFlagName), projectRootKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", false, "log at debug level")
	cmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "log file (default from "+logFilenameKey+")")
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	if len(paths) == 0 {
		paths = append(paths, m.Path("./..."))
	}

	return paths
}

// filterFrom builds the source filter of a run.
func filterFrom(s Settings) domain.SourceFilter {
	return domain.SourceFilter{
		Include: s.Include,
		Exclude: s.Exclude,
		Root:    m.Path(s.ProjectRoot),
		HashIDs: s.HashIDs,
	}
}

// passFrom builds the pass options of a run.
func passFrom(s Settings) domain.PassOptions {
	return domain.PassOptions{
		RuntimeModule:   s.RuntimeModule,
		RegisterName:    s.RegisterName,
		ManifestComment: s.ManifestComment,
	}
}

// openCache opens the on-disk cache unless disabled. The returned cleanup is
// always safe to call.
func openCache(s Settings) (adapter.CacheStore, func(), error) {
	if s.NoCache {
		return nil, func() {}, nil
	}

	store, err := adapter.OpenBadgerCacheStore(s.CacheDir)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open cache %s: %w", s.CacheDir, err)
	}

	return store, func() {
		_ = store.Close()
	}, nil
}
