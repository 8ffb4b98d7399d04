// Package main provides the epmforge command-line interface.
package main

import (
	"os"

	"github.com/leapstack-labs/epmforge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
