package main

import (
	"os"

	"github.com/ghostwriter/ghostwriter/pkg/cli"
)

// Version is set via ldflags during build
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
