// Command tubescand drains the tubescan job queue with a fixed-width worker
// pool and exits once no pending or running job remains.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			// Interrupted jobs were recorded as failed; nothing else to report.
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "tubescand:", err)
		os.Exit(1)
	}
}
