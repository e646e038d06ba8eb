// The main package for the mailharvest executable.
package main

import (
	"github.com/jfaulkner/mailharvest/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
