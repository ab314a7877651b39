// Command logreduce copies date-partitioned query-log tables from a source
// store into a target store, cleaning and reducing each row on the way.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
