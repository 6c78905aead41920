// Package main provides the entry point for the rag CLI.
package main

import (
	"os"

	"hybridrag/cmd/rag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
