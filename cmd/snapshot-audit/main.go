package main

import (
	"fmt"
	"os"

	"github.com/spec-kit/bug-snapshot-service/cmd/snapshot-audit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
