// Command reviewctl runs review ingestion batches from the terminal and
// issues owner tokens for the HTTP API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
