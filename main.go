// vaultfm - command-line file manager for the vault storage backend.
//
// Build with: go build -ldflags "-X github.com/vaultfm/vaultfm/internal/version.Version=vX.Y.Z"
package main

import (
	"os"

	"github.com/vaultfm/vaultfm/internal/cli"
)

func main() {
	// cobra has already printed the error
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
