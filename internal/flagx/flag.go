// Package flagx lets independent loaders share os.Args: each one parses only
// the flags it owns and ignores the rest.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigEnv names the environment variable consulted when no -c/-config
// flag is given.
const ConfigEnv = "TOKENKEEPER_CONFIG"

// flagName strips one or two leading dashes; the flag package accepts both.
func flagName(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "-") || arg == "-" || arg == "--" {
		return "", false
	}
	return strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-"), true
}

// FilterArgs returns the subset of args whose flag name (without dashes) is in
// allowed, keeping "-f value", "--f value" and "-f=value" forms in their
// original order. A value is only attached when the next argument does not
// look like a flag.
func FilterArgs(args []string, allowed []string) []string {
	names := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		if n, ok := flagName(f); ok {
			names[n] = struct{}{}
		} else {
			names[f] = struct{}{}
		}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		n, ok := flagName(arg)
		if !ok {
			continue
		}

		if name, _, found := strings.Cut(n, "="); found {
			if _, ok := names[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := names[n]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigPath returns the config file named by -c or -config in args, falling
// back to $TOKENKEEPER_CONFIG. The last flag wins.
func ConfigPath(args []string) string {
	var config string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(nopWriter{})
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"c", "config"}))

	if config == "" {
		config = os.Getenv(ConfigEnv)
	}
	return config
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
