// Command dtc compiles graph pattern queries over request traces.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/dtc/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dtc:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
