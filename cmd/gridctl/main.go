// gridctl inspects, lays out and fetches power-network topologies from the
// command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
