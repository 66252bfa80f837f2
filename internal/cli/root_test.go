package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersCoreSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, expected := range []string{"serve", "tray", "transcribe", "setup", "models", "version"} {
		require.Truef(t, names[expected], "missing subcommand %s", expected)
	}

	require.NotNil(t, cmd.Flags().Lookup("port"))
	require.NotNil(t, cmd.Flags().Lookup("model"))
	require.NotNil(t, cmd.Flags().Lookup("model-dir"))
	require.NotNil(t, cmd.Flags().Lookup("language"))
	require.NotNil(t, cmd.Flags().Lookup("engine"))
	require.NotNil(t, cmd.Flags().Lookup("auto-download"))
	require.NotNil(t, cmd.Flags().Lookup("log-file"))
	require.Equal(t, "true", cmd.Flags().Lookup("auto-download").DefValue)
	require.Equal(t, "true", cmd.Flags().Lookup("silence-gate").DefValue)
	require.Equal(t, "-65", cmd.Flags().Lookup("silence-threshold-dbfs").DefValue)
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)
	require.Contains(t, out.String(), "serve")
	require.Contains(t, out.String(), "tray")
	require.Contains(t, out.String(), "transcribe")
	require.Contains(t, out.String(), "setup")
	require.Contains(t, out.String(), "models")
}

func TestSubcommandHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "serve", args: []string{"serve", "--help"}, contains: "Run the transcription HTTP server"},
		{name: "tray", args: []string{"tray", "--help"}, contains: "system-tray controller"},
		{name: "transcribe", args: []string{"transcribe", "--help"}, contains: "Transcribe one or more audio files"},
		{name: "setup", args: []string{"setup", "--help"}, contains: "Download and verify speech model assets"},
		{name: "models", args: []string{"models", "--help"}, contains: "List known Whisper models"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRootCmd()
			out := new(bytes.Buffer)
			cmd.SetOut(out)
			cmd.SetErr(out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.NoError(t, err)
			require.Contains(t, out.String(), tt.contains)
		})
	}
}

func TestBuildEngineRejectsUnknownName(t *testing.T) {
	t.Parallel()

	app := &appState{engineName: "deepgram"}
	_, err := app.buildEngine()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown engine")
}

func TestServeArgsForwardConfiguration(t *testing.T) {
	t.Parallel()

	app := &appState{
		port:         9001,
		model:        "small",
		modelDir:     "/models",
		language:     "de",
		engineName:   engineOpenAI,
		autoDownload: false,
		silenceGate:  true,
	}

	args := app.serveArgs("/var/log/whisper.log")
	require.Contains(t, args, "serve")
	require.Contains(t, args, "9001")
	require.Contains(t, args, "--log-file")
	require.Contains(t, args, "/var/log/whisper.log")
	require.Contains(t, args, "--model")
	require.Contains(t, args, "small")
	require.Contains(t, args, "--language")
	require.Contains(t, args, "--engine")
	require.Contains(t, args, "--auto-download=false")
	require.NotContains(t, args, "--silence-gate=false")
}
