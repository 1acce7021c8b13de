package main

import (
	"os"

	"github.com/ShuqiCH3N/Elytro/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
