package main

import (
	"fmt"
	"os"

	"github.com/ducminhle1904/trend-engine/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
