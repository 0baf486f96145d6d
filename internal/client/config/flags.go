package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the authentication/API server
//	-d string   path to the SQLite session database
//	-s string   store backend: sqlite, redis or memory
//	-t int      refresh threshold in seconds before token expiry
//	-g string   comma separated graceful (no forced logout) path fragments
//	-l string   log level
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-g", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the API server")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "session database path")
	fs.StringVar(&cfg.StoreBackend, "s", cfg.StoreBackend, "store backend (sqlite, redis, memory)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	threshold := fs.Int("t", int(cfg.RefreshThreshold.Seconds()), "refresh threshold (in seconds)")
	graceful := fs.String("g", strings.Join(cfg.GracefulPaths, ","), "graceful path fragments, comma separated")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RefreshThreshold = time.Duration(*threshold) * time.Second
	cfg.GracefulPaths = splitList(*graceful)
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
