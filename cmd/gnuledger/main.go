package main

import (
	"os"

	"github.com/cleared-dev/gnuledger/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
