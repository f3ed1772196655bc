// Command reteflow compiles SPARQL queries into stream topologies and runs
// them locally.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/reteflow/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// Command output already went to stdout; stderr gets the summary.
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
