package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-noticast/cmd/noticast/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
