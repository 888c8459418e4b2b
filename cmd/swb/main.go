package main

import (
	"os"

	"github.com/bnema/starknet-wallet-bridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
