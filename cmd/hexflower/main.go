// Command hexflower manages Hex Flowers: procedural navigation on a
// bounded hexagonal lattice driven by two six-sided dice.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
