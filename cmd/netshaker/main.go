// Package main implements the root level command for the netshaker CLI
package main

import (
	"fmt"
	"os"

	"github.com/instabilitylab/netshaker/cmd/netshaker/commands"
	"github.com/instabilitylab/netshaker/pkg/runtime"
)

func main() {
	env := runtime.DefaultEnvironment()

	rootCmd := commands.BuildRootCmd(env)

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
