package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pendergraft/delegation-deployments/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
