package main

import (
	"fmt"
	"os"

	"github.com/de-monkey-v/hyper-team-sub000/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
