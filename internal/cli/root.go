package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sekachev/whisper-api/internal/config"
	"github.com/sekachev/whisper-api/internal/logging"
	"github.com/sekachev/whisper-api/internal/platform"
	"github.com/sekachev/whisper-api/internal/version"
	"github.com/sekachev/whisper-api/internal/whisper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

const (
	engineBundled = "bundled"
	engineOpenAI  = "openai"
)

type appState struct {
	verbose      bool
	jsonLogs     bool
	logFile      string
	noProgress   bool
	port         int
	model        string
	modelDir     string
	language     string
	engineName   string
	autoDownload bool
	silenceGate  bool
	silenceDBFS  float64
	openAIKey    string

	logger *zap.Logger
	out    io.Writer

	engineFn     func() (whisper.Engine, error)
	transcribeFn func(ctx context.Context, audioPath string) (string, error)
	serveFn      func(ctx context.Context) error
	trayFn       func() error
}

func NewRootCmd() *cobra.Command {
	cfg := config.Load()

	app := &appState{
		port:         cfg.Port,
		model:        cfg.Model,
		modelDir:     cfg.ModelDir,
		language:     cfg.Language,
		engineName:   cfg.Engine,
		logFile:      cfg.LogFile,
		openAIKey:    cfg.OpenAIKey,
		autoDownload: true,
		silenceGate:  true,
		silenceDBFS:  -65,
		out:          os.Stdout,
	}

	cmd := &cobra.Command{
		Use:           "whisperapi",
		Short:         "Serve a local Whisper speech-to-text API with a system-tray controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs, File: app.logFile})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.language = sanitizeLanguage(app.language)
			app.logger = logger
			return nil
		},
		// Running the binary without a subcommand brings up the tray icon,
		// which starts the server on its own.
		RunE: func(*cobra.Command, []string) error {
			return app.runTray()
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindLanguageAndModelDownloadFlags(cmd, app)
	bindEngineFlag(cmd, app)
	bindServerFlags(cmd, app)
	bindSilenceFlags(cmd, app)

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTrayCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newModelsCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.Flags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	cmd.Flags().StringVar(&app.logFile, "log-file", app.logFile, "Append logs to this file in addition to stderr")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.model, "model", app.model, "Model name or model file path")
	cmd.Flags().StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
}

func bindLanguageAndModelDownloadFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.language, "language", app.language, "Language code (auto|en|de|...) for transcription")
	cmd.Flags().BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")
}

func bindEngineFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.engineName, "engine", app.engineName, "Transcription engine: bundled|openai")
}

func bindServerFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().IntVar(&app.port, "port", app.port, "Port the HTTP server listens on")
}

func bindSilenceFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.silenceGate, "silence-gate", app.silenceGate, "Detect near-silent WAV audio and skip transcription")
	cmd.Flags().Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Silence gate threshold in dBFS")
}

func (a *appState) buildEngine() (whisper.Engine, error) {
	if a.engineFn != nil {
		return a.engineFn()
	}

	switch a.engineName {
	case engineBundled:
		return whisper.NewBundledEngine(a.log())
	case engineOpenAI:
		return whisper.NewOpenAIEngine(a.openAIKey, "", a.log())
	default:
		return nil, fmt.Errorf("unknown engine %q (expected %s or %s)", a.engineName, engineBundled, engineOpenAI)
	}
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.modelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

// modelPresent backs GET /models; the hosted engine needs no local file.
func (a *appState) modelPresent() bool {
	if a.engineName == engineOpenAI {
		return true
	}

	dir, err := platform.ResolveModelDir(a.modelDir)
	if err != nil {
		return false
	}

	resolved, err := whisper.ResolveModel(a.model, dir)
	return err == nil && !resolved.NeedsDownload
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
