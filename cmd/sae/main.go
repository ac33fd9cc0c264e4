package main

import (
	"os"

	"github.com/TheusHen/sae/cmd/sae/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
