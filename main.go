package main

import (
	"os"

	"github.com/nsxbet/sql-filter-validator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
