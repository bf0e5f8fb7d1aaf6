// Package main is the upsample command.
package main

import (
	"log"
	"os"

	"go.viam.com/depthfusion/cli"
)

func main() {
	if err := cli.NewApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
