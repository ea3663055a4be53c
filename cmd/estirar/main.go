package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"estirar/internal/infra/errtrack"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	errtrack.Close()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
