// Command advisoryctl runs maintenance tasks against the advisory database:
// migrations, seeding the first responder account, previewing registration
// numbers and rebuilding the search index.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
