package main

import (
	"os"

	"github.com/redraskal/gateway/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
