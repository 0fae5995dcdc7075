package main

import (
	"fmt"
	"os"

	"github.com/roach88/apagea/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		code := cli.GetExitCode(err)
		// Operation failures were already reported through the
		// formatter; command errors have not been printed yet.
		if code == cli.ExitCommandError {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(code)
	}
}
