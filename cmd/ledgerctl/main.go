package main

import (
	"os"

	"github.com/transitops/fleet-ledger/cmd/ledgerctl/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.DefaultEnv()).Execute(); err != nil {
		os.Exit(1)
	}
}
