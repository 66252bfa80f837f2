package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sekachev/whisper-api/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transcription HTTP server in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			serveFn := app.serveFn
			if serveFn == nil {
				serveFn = app.runServe
			}
			return serveFn(cmd.Context())
		},
	}

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindLanguageAndModelDownloadFlags(cmd, app)
	bindEngineFlag(cmd, app)
	bindServerFlags(cmd, app)
	bindSilenceFlags(cmd, app)

	return cmd
}

func (a *appState) runServe(ctx context.Context) error {
	engine, err := a.buildEngine()
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Port:         a.port,
		Model:        a.model,
		Language:     a.language,
		EngineName:   a.engineName,
		SilenceGate:  a.silenceGate,
		SilenceDBFS:  a.silenceDBFS,
		ResolveModel: a.resolveModelPath,
		ModelReady:   a.modelPresent,
	}, engine, a.log())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx)
}

// resolveModelPath prepares the local model for the bundled engine; hosted
// engines need no model file.
func (a *appState) resolveModelPath(ctx context.Context) (string, error) {
	if a.engineName == engineOpenAI {
		return "", nil
	}

	resolved, err := a.ensureModelAvailable(ctx)
	if err != nil {
		return "", err
	}
	return resolved.Path, nil
}
