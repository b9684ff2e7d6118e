package main

import (
	"context"
	"os"

	"github.com/marcelocantos/pipe/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(context.Background(), version, os.Args[1:], cli.StdStreams()))
}
