// Command lexcorpus versions and normalises a legal and tax document corpus.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/lexcorpus/internal/adapters/driving/cli"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBuilder(build)

	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
