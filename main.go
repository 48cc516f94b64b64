package main

import (
	"log"

	"github.com/lnwallet-oss/nwcclient/cmd"
	"github.com/lnwallet-oss/nwcclient/internal/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	cmd.Execute()
}
