// Package main is the dbt-analyzer command.
package main

import (
	"os"

	"github.com/leapstack-labs/dbt-analyzer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
