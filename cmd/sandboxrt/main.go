package main

import (
	"os"

	"github.com/rickgorman/sandboxrt/internal/cli"
	"github.com/rickgorman/sandboxrt/internal/ui"
)

const version = "0.1.0-dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		ui.Fail("%v", err)
		os.Exit(1)
	}
}
