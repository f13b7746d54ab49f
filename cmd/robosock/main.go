// Command robosock binds a managed Unix datagram socket and relays what it
// receives.
package main

import (
	"os"

	"github.com/robolink/robosock/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
