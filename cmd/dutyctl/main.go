// Command dutyctl operates the duty roster from the shell: seeding staff,
// running assignment batches from YAML, reassigning and reporting.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
