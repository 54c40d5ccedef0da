package main

import (
	"fmt"
	"os"

	gridApp "gridkit/internal/app"
)

func main() {
	if err := gridApp.ServeMCP(); err != nil {
		fmt.Fprintf(os.Stderr, "gridkit: %v\n", err)
		os.Exit(1)
	}
}
