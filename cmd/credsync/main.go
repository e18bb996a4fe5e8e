// Package main is the entry point for credsync, which synchronizes a
// developer's remote-build credential into the kernel keyring on a remote
// development host over a single multiplexed ssh connection.
package main

import (
	"fmt"
	"os"

	"credsync/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
)

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "credsync: %v\n", err)
		os.Exit(1)
	}
}
