package main

import (
	"os"

	"github.com/p-n-ai/mindshift/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
