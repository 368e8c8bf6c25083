// Command flowcanvas follows, journals and replays workflow editing sessions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/flowcanvas/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
