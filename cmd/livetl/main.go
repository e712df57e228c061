// Command livetl translates HTML documents with a dictionary.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ZaguanLabs/livetl"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = livetl.Version
	commit    = livetl.GitCommit
	buildDate = livetl.BuildDate
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := newRootCommand(stdin, stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}
