package main

import (
	"os"

	"github.com/draftforge/forge/cmd/forge/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
