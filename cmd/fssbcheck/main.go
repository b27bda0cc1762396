// Command fssbcheck runs black-box checks against the fssb file-system
// sandbox. See internal/harness for the test cases it knows.
package main

import (
	"context"
	"os"

	"github.com/roach88/fssbcheck/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
