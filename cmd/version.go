package cmd

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the actionlift version",
		Long:  "Displays the actionlift module version, the VCS revision it was built from and the Go version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info, ok := debug.ReadBuildInfo()
			for _, line := range versionLines(info, ok) {
				cmd.Println(line)
			}
		},
	}
}

// versionLines renders build info. Binaries built outside module mode carry
// no version.
func versionLines(info *debug.BuildInfo, ok bool) []string {
	if !ok || info == nil || info.Main.Version == "" {
		return []string{configBaseName + " version: unknown"}
	}

	lines := []string{configBaseName + " version\t" + info.Main.Version}

	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			lines = append(lines, "revision\t"+s.Value)
		}
	}

	return append(lines, "go version\t"+info.GoVersion)
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
