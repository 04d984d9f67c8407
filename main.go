package main

import (
	"os"

	"github.com/joho/godotenv"
	cliruntime "github.com/tomasbasham/cli-runtime"
)

func main() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	command := NewRootCommand()
	if code := cliruntime.Run(command); code != 0 {
		os.Exit(code)
	}
}
