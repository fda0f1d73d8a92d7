// Command scada runs the reactor plant simulator.
package main

import (
	"fmt"
	"os"

	"github.com/tanudai/Nuclear-SCADA/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
