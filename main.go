package main

import (
	"os"

	"sfetl/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
