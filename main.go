// The main package for the vies executable.
package main

import (
	"github.com/JakeFAU/vies-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
