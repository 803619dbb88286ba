package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/finboard-dev/finboard/internal/commands"
)

func main() {
	// FINBOARD_* overrides may live in a .env file next to the workspace.
	_ = godotenv.Load()

	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
