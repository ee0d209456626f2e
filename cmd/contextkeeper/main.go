package main

import (
	"fmt"
	"os"

	"contextkeeper/internal/cli"
)

func main() {
	if err := cli.Execute(cli.NewRootCmd()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
