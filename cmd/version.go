package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// These variables are populated at build time using -ldflags.
// Example:
// go build -ldflags "-X 'github.com/TFMV/filelist/cmd.Version=1.2.3' -X 'github.com/TFMV/filelist/cmd.Commit=abcdefg'"
var (
	Version   = "0.1.0"   // Semantic version of the application
	Commit    = "none"    // Git commit hash
	BuildTime = "unknown" // Build timestamp
)

// versionString returns the version information in a single line.
func versionString() string {
	return fmt.Sprintf("filelist version %s (commit: %s) built at %s with %s on %s/%s",
		Version, Commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return err
		},
	}
}
