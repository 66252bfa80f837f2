package cli

import (
	"fmt"
	"strconv"

	"github.com/sekachev/whisper-api/internal/logging"
	"github.com/sekachev/whisper-api/internal/platform"
	"github.com/sekachev/whisper-api/internal/tray"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTrayCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tray",
		Short: "Run the system-tray controller for the server",
		RunE: func(*cobra.Command, []string) error {
			return app.runTray()
		},
	}

	bindLoggingFlags(cmd, app)
	bindModelFlags(cmd, app)
	bindLanguageAndModelDownloadFlags(cmd, app)
	bindEngineFlag(cmd, app)
	bindServerFlags(cmd, app)
	bindSilenceFlags(cmd, app)

	return cmd
}

func (a *appState) runTray() error {
	if a.trayFn != nil {
		return a.trayFn()
	}

	logPath, err := platform.ResolveLogFile(a.logFile)
	if err != nil {
		return fmt.Errorf("resolve log file: %w", err)
	}

	// In tray mode there is no terminal to read stderr from, so logs always
	// go to the shared file, as the original desktop service did.
	if a.logFile == "" {
		logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs, File: logPath})
		if err != nil {
			return fmt.Errorf("initialize tray logger: %w", err)
		}
		a.logger = logger
	}

	proc := tray.NewServerProcess(tray.ProcessOptions{
		Port:   a.port,
		Args:   a.serveArgs(logPath),
		Logger: a.log(),
	})

	controller := tray.NewController(tray.Options{
		Port:    a.port,
		LogFile: logPath,
		Logger:  a.log(),
		Process: proc,
	})

	a.log().Info("starting tray controller", zap.Int("port", a.port))
	controller.Run()
	return nil
}

// serveArgs forwards the tray's configuration to the spawned server so both
// processes agree on port, model, and log destination.
func (a *appState) serveArgs(logPath string) []string {
	args := []string{"serve", "--port", strconv.Itoa(a.port), "--log-file", logPath}

	if a.model != "" {
		args = append(args, "--model", a.model)
	}
	if a.modelDir != "" {
		args = append(args, "--model-dir", a.modelDir)
	}
	if a.language != "" && a.language != "auto" {
		args = append(args, "--language", a.language)
	}
	if a.engineName != "" && a.engineName != engineBundled {
		args = append(args, "--engine", a.engineName)
	}
	if !a.autoDownload {
		args = append(args, "--auto-download=false")
	}
	if !a.silenceGate {
		args = append(args, "--silence-gate=false")
	}
	if a.verbose {
		args = append(args, "--verbose")
	}

	return args
}
