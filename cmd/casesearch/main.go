// Package main provides the entry point for the casesearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/casesearch/cmd/casesearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
