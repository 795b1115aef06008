package main

import (
	"context"
	"os"

	"github.com/donets/jtrack/internal/client/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
