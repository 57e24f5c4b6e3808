package cli

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "prm", cmd.Use)
	assert.Contains(t, cmd.Long, "parametric properties")

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestSubcommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   map[string]string // flag -> default
	}{
		{"validate", nil},
		{"analyze", map[string]string{"property": ""}},
		{"replay", map[string]string{"db": "", "property": "", "metrics-out": "", "config": "", "run-id": ""}},
		{"matches", map[string]string{"db": "", "run": "", "property": "", "state": "", "event": "", "binding": "[]", "limit": "0"}},
		{"test", map[string]string{"update": "false", "filter": ""}},
	}
	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			assert.Equal(t, tt.command, sub.Name())
			for name, def := range tt.flags {
				flag := sub.Flags().Lookup(name)
				require.NotNil(t, flag, name)
				assert.Equal(t, def, flag.DefValue, name)
			}
		})
	}
}

func TestFormatValidation(t *testing.T) {
	for _, f := range []string{"text", "json"} {
		assert.True(t, isValidFormat(f), f)
	}
	for _, f := range []string{"xml", "", "TEXT"} {
		assert.False(t, isValidFormat(f), f)
	}

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "validate", "."})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestVerboseLowersLogLevel(t *testing.T) {
	t.Cleanup(func() { LogLevel.Set(slog.LevelInfo) })

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-v", "validate", propertiesDir})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, slog.LevelDebug, LogLevel.Level())
}
