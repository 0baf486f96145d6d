package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd", "-a", "https://api.example.com", "-d", "/tmp/s.db", "-s", "memory",
				"-t", "120", "-g", "/lookups, /catalog", "-l", "debug"},
			expected: &Config{
				ServerURL:        "https://api.example.com",
				DBPath:           "/tmp/s.db",
				StoreBackend:     "memory",
				RefreshThreshold: 120 * time.Second,
				GracefulPaths:    []string{"/lookups", "/catalog"},
				LogLevel:         "debug",
			},
		},
		{
			name: "unknown flags ignored, empty allow-list",
			args: []string{"cmd", "-x", "1", "-g", ""},
			expected: &Config{
				GracefulPaths: []string{},
			},
		},
		{name: "incorrect threshold", args: []string{"cmd", "-t", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a,,b ,"))
	assert.Equal(t, []string{}, splitList(""))
}
