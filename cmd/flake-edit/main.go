package main

import (
	"os"

	"github.com/a-kenji/flake-edit/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
