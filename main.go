package main

import (
	"fmt"
	"os"

	cmd "github.com/cadforge/meshgen/cmd/meshgen"
)

func main() {
	rootCmd := cmd.GetRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
