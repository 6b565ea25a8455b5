// =============================================================================
// Usage Insights Reporter - Version Command
// =============================================================================
//
// 'usage-reporter version' prints the build identity on a single line, e.g:
//
//   usage-reporter 1.0.0 (built 2024-01-01, go1.24.0)
//
// Version and BuildDate are stamped at build time:
//   go build -ldflags "-X '<module>/cmd.Version=1.0.0' -X '<module>/cmd.BuildDate=2024-01-01'"
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is stamped via ldflags; "dev" means a local, unstamped build.
var Version = "dev"

// BuildDate is stamped via ldflags.
var BuildDate = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("usage-reporter %s (built %s, %s)\n", Version, BuildDate, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
