package main

import (
	"fmt"
	"os"

	"github.com/strideml/simlink/cli"
)

// main entry point to the simulator commands
func main() {
	rootCommand := cli.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
