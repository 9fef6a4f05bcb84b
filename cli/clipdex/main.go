package main

import (
	"os"

	clipdexcmder "github.com/clipdex/clipdex/cmd/clipdex"
)

func main() {
	cmd := clipdexcmder.NewClipdexCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
