package tray

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"fyne.io/systray"
	"go.uber.org/zap"
)

//go:embed icon.png
var iconData []byte

type Options struct {
	Port    int
	LogFile string
	Logger  *zap.Logger
	// Process may be pre-built by the caller; defaults to a ServerProcess
	// spawning `<self> serve` on Port.
	Process *ServerProcess
	// OpenFn opens a URL or file with the desktop's default handler.
	OpenFn func(target string) error
}

// Controller is the tray-icon lifecycle manager: a desktop icon whose menu
// starts and stops the HTTP server process.
type Controller struct {
	opts   Options
	proc   *ServerProcess
	logger *zap.Logger
}

func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	proc := opts.Process
	if proc == nil {
		proc = NewServerProcess(ProcessOptions{Port: opts.Port, Logger: logger})
	}

	if opts.OpenFn == nil {
		opts.OpenFn = openWithDesktop
	}

	return &Controller{opts: opts, proc: proc, logger: logger}
}

// Run blocks until Quit is chosen from the menu. The server is started
// automatically on launch, matching the original desktop service.
func (c *Controller) Run() {
	systray.Run(c.onReady, c.onExit)
}

func (c *Controller) onReady() {
	systray.SetIcon(iconData)
	systray.SetTitle("Whisper API")
	systray.SetTooltip("Whisper API Server")

	mStart := systray.AddMenuItemCheckbox("Start Server", "Start the transcription server", false)
	mStop := systray.AddMenuItem("Stop Server", "Stop the transcription server")
	systray.AddSeparator()
	mDocs := systray.AddMenuItem("Open API Docs", "Open the API root in a browser")
	mLogs := systray.AddMenuItem("View Logs", "Open the log file")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Stop the server and exit")

	refresh := func() {
		if c.proc.Running() {
			mStart.Check()
			mStart.Disable()
			mStop.Enable()
			systray.SetTooltip(fmt.Sprintf("Whisper API Server - running on port %d", c.opts.Port))
		} else {
			mStart.Uncheck()
			mStart.Enable()
			mStop.Disable()
			systray.SetTooltip("Whisper API Server - stopped")
		}
	}

	go func() {
		c.startServer()
		refresh()

		// The server can die outside our control, so the menu state is
		// re-derived periodically, not only on clicks.
		poll := time.NewTicker(10 * time.Second)
		defer poll.Stop()

		for {
			select {
			case <-poll.C:
				refresh()
			case <-mStart.ClickedCh:
				c.startServer()
				refresh()
			case <-mStop.ClickedCh:
				c.stopServer()
				refresh()
			case <-mDocs.ClickedCh:
				c.open(fmt.Sprintf("http://localhost:%d/", c.opts.Port))
			case <-mLogs.ClickedCh:
				c.open(c.opts.LogFile)
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func (c *Controller) onExit() {
	c.stopServer()
}

func (c *Controller) startServer() {
	if err := c.proc.Launch(context.Background()); err != nil {
		c.logger.Error("failed to start server", zap.Error(err))
		systray.SetTooltip(fmt.Sprintf("Whisper API Server - start failed: %v", err))
	}
}

func (c *Controller) stopServer() {
	if err := c.proc.Terminate(); err != nil {
		c.logger.Error("failed to stop server", zap.Error(err))
		systray.SetTooltip(fmt.Sprintf("Whisper API Server - stop failed: %v", err))
	}
}

func (c *Controller) open(target string) {
	if target == "" {
		return
	}
	if err := c.opts.OpenFn(target); err != nil {
		c.logger.Warn("failed to open target", zap.String("target", target), zap.Error(err))
	}
}
