// Command groovebox runs the embedded sequencer engine against real or
// simulated hardware.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/zurustar/groovecore/pkg/app"
)

func main() {
	a := app.New()

	tickInterval := 5 * time.Millisecond
	tick := func() bool {
		time.Sleep(tickInterval)
		return true
	}

	if err := a.Run(os.Args[1:], tick); err != nil {
		fmt.Fprintf(os.Stderr, "groovebox: %v\n", err)
		os.Exit(1)
	}
}
