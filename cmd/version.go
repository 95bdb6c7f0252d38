package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redraskal/gateway/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the gateway version and build information.

Examples:
  gateway version               # gateway v1.2.0 (abc1234)
  gateway version --short       # v1.2.0 (abc1234)
  gateway version --detailed    # One line per build field
  gateway version -f json       # As JSON`,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", formatText, "Output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Print every build field")
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()
	if versionFormat != formatText {
		return writeFormatted(out, versionFormat, info)
	}
	switch {
	case versionShort:
		fmt.Fprintln(out, info.Short())
	case versionDetailed:
		fmt.Fprintln(out, info.Detailed())
	default:
		fmt.Fprintf(out, "gateway %s\n", info.Short())
	}
	return nil
}
