package main

import (
	"os"

	"github.com/psantana5/kdfcal/cmd/kdfcal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
