// main is the entry point for the stablelint CLI.
package main

import (
	"github.com/huangsam/stablelint/cmd"
	"github.com/huangsam/stablelint/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.LogFatal("Command failed", err)
	}
}
