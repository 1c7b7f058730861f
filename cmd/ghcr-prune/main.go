package main

import (
	"os"

	"github.com/regtools/ghcr-prune/pkg/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
