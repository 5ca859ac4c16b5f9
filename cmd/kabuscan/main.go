package main

import (
	"os"

	"github.com/kaizumaki/kabuscan/cmd/kabuscan/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
