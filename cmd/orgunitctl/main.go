// Command orgunitctl manages the organization unit tree of an identity
// service from the terminal.
package main

import (
	"os"
)

var (
	version   = ""
	commit    = ""
	treeState = ""
	date      = ""
	builtBy   = ""
)

func main() {
	os.Exit(execute(os.Stdin, os.Stdout, os.Stderr, os.Args[1:]))
}
