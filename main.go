package main

import (
	"os"

	"clio/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
