package main

import (
	"context"
	"os"

	"github.com/chatdf/chatdf/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], cli.Options{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}))
}
