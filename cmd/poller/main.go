// Command poller runs the Calendly, Vercel and Front connectors as
// incremental polling jobs.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
