package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{name: "empty disables", input: "", want: nil},
		{name: "comment disables", input: "# wl-copy", want: nil},
		{name: "plain", input: "wl-copy --trim-newline", want: []string{"wl-copy", "--trim-newline"}},
		{name: "paste default", input: "wtype -M ctrl v -m ctrl", want: []string{"wtype", "-M", "ctrl", "v", "-m", "ctrl"}},
		{name: "double quoted", input: `notify-send "vibe writer"`, want: []string{"notify-send", "vibe writer"}},
		{name: "single quoted", input: `sh -c 'echo hi'`, want: []string{"sh", "-c", "echo hi"}},
		{name: "quoted empty argument", input: `wtype '' --end`, want: []string{"wtype", "", "--end"}},
		{name: "escaped space", input: `type\ tool --fast`, want: []string{"type tool", "--fast"}},
		{name: "unterminated quote", input: `wl-copy "oops`, wantErr: true},
		{name: "unterminated escape", input: `wl-copy \`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCommand(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.input, got.Raw)
			require.Equal(t, tc.want, got.Argv)
		})
	}
}

func TestDefaultCommandsParse(t *testing.T) {
	cfg := Default()
	require.NotEmpty(t, cfg.Output.Clipboard.Argv)
	require.Equal(t, "wl-copy", cfg.Output.Clipboard.Argv[0])
	require.NotEmpty(t, cfg.Output.PasteCmd.Argv)
	require.Equal(t, "wtype", cfg.Output.PasteCmd.Argv[0])
	require.Empty(t, cfg.Output.TypeCmd.Argv)
}
