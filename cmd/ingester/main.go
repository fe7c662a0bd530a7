package main

import (
	"os"

	"github.com/airportmatch/nearestairport/cmd/ingester/cmd"
	"github.com/airportmatch/nearestairport/internal/common"
)

func main() {
	common.ConfigureLogging("info", "text")
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
