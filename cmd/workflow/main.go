// Package main provides the entry point for the workflow CLI.
package main

import (
	"os"

	"github.com/opencode-ai/workflow/cmd/workflow/commands"
)

func main() {
	os.Exit(commands.Execute())
}
