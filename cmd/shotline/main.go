package main

import (
	"errors"
	"os"

	"github.com/shotline/shotline/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			// Command output already printed its own report.
			os.Exit(exitErr.Code)
		}
		os.Exit(cli.ExitFailure)
	}
}
