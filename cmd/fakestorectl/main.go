package main

import (
	"os"

	"github.com/fakestore-systems/fakestore-api/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
