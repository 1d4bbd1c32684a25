package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/instabilitylab/netshaker/pkg/version"
)

// BuildVersionCmd returns a cobra command that prints the build version
func BuildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
