package config

import (
	"flag"
	"os"

	"github.com/nsendoda/suggestion-box/internal/flagx"
)

// parseFlags applies the server's command-line flags:
//
//	-a string     listen address (":8080")
//	-d string     database DSN
//	-driver str   database driver (pgx|sqlite)
//	-s string     receipt signing secret
//	-k int        default keep limit for new owners
//	-tz string    time zone for letter timestamps
//
// Other arguments are filtered out first so that -c and test flags do not
// trip the parser. A parse error panics.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-driver", "-s", "-k", "-tz"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to listen on")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver (pgx|sqlite)")
	fs.StringVar(&config.ReceiptSecret, "s", config.ReceiptSecret, "receipt signing secret")
	fs.IntVar(&config.DefaultKeepLimit, "k", config.DefaultKeepLimit, "default keep limit for new owners")
	fs.StringVar(&config.TimeZone, "tz", config.TimeZone, "time zone for letter timestamps")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
