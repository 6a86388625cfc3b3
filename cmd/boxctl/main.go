// Command boxctl administers a suggestion box database: it runs
// migrations, creates owners, adjusts keep limits, toggles signups and
// purges expired sessions.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
