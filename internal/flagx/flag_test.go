package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-c", "tk.json", "-a", "http://localhost:8080"},
			allowed: []string{"-c"},
			want:    []string{"-c", "tk.json"},
		},
		{
			name:    "double dash and equals",
			args:    []string{"--config=alt.json", "-a", "http://localhost:8080"},
			allowed: []string{"-config"},
			want:    []string{"--config=alt.json"},
		},
		{
			name:    "allowed names may omit dashes",
			args:    []string{"-t", "5m", "-g", "/equipment-types"},
			allowed: []string{"t"},
			want:    []string{"-t", "5m"},
		},
		{
			name:    "flag followed by a flag gets no value",
			args:    []string{"-c", "-s", "redis"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "positional arguments and bare dashes dropped",
			args:    []string{"login", "-", "--", "-c", "x.json"},
			allowed: []string{"-c"},
			want:    []string{"-c", "x.json"},
		},
		{
			name:    "repeated flag keeps order",
			args:    []string{"-c", "one.json", "--config", "two.json"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-c", "one.json", "--config", "two.json"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"-x", "1"},
			allowed: []string{"-c"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Run("short flag", func(t *testing.T) {
		t.Setenv(ConfigEnv, "")
		assert.Equal(t, "/etc/tk.json", ConfigPath([]string{"-c", "/etc/tk.json"}))
	})

	t.Run("last flag wins", func(t *testing.T) {
		t.Setenv(ConfigEnv, "")
		assert.Equal(t, "/b.json", ConfigPath([]string{"-c", "/a.json", "--config=/b.json"}))
	})

	t.Run("environment fallback", func(t *testing.T) {
		t.Setenv(ConfigEnv, "/env.json")
		assert.Equal(t, "/env.json", ConfigPath([]string{"-s", "memory"}))
	})

	t.Run("flag beats environment", func(t *testing.T) {
		t.Setenv(ConfigEnv, "/env.json")
		assert.Equal(t, "/flag.json", ConfigPath([]string{"-config", "/flag.json"}))
	})

	t.Run("nothing set", func(t *testing.T) {
		t.Setenv(ConfigEnv, "")
		assert.Empty(t, ConfigPath(nil))
	})
}
