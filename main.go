package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/olimci/lazycell/cmd"
)

func main() {
	if err := cmd.Execute(context.Background(), os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
