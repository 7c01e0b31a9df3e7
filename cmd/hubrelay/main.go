package main

import (
	"os"

	"github.com/adamsanghera/hubrelay/cmd/hubrelay/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
