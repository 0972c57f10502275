// Package main provides the entry point for the Weft CLI.
package main

import (
	"fmt"
	"os"

	"github.com/weftwork/weft/cmd/weft/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
