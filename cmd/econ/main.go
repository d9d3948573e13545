package main

import (
	"os"

	"github.com/RuizOsvaldo/economic-dashboard/cmd/econ/commands"
)

// main is the entry point for the econ CLI
// ⭐ single CLI entry point: go run ./cmd/econ [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
