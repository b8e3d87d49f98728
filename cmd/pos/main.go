// Command pos is the point-of-sale back end: a CLI for till operations and
// an HTTP server (pos serve).
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pos/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
