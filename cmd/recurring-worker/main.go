package main

import (
	"os"

	"mymoney/internal/cli"
)

func main() {
	if err := cli.NewWorkerRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
