package main

import (
	"os"

	"github.com/agriscan/agriscan-go/cmd/agriscan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
