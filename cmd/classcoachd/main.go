// Command classcoachd runs the classcoach daemon until it receives SIGINT or
// SIGTERM.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
