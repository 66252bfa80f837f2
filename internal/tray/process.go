package tray

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	defaultStartTimeout = 10 * time.Second
	defaultStopTimeout  = 5 * time.Second
)

// ErrProcess marks failures to start or stop the managed server process.
var ErrProcess = errors.New("server process error")

type ProcessOptions struct {
	// Binary to spawn; defaults to the current executable.
	Binary string
	// Args passed to the binary; defaults to the serve subcommand on Port.
	Args []string
	Port int
	// HealthURL overrides the readiness probe target, for tests.
	HealthURL    string
	StartTimeout time.Duration
	StopTimeout  time.Duration
	Logger       *zap.Logger
}

// ServerProcess owns the lifecycle of the spawned HTTP server. It has two
// states, stopped and running; Launch only reports running once the health
// endpoint answers.
type ServerProcess struct {
	opts ProcessOptions

	mu      sync.Mutex
	cmd     *exec.Cmd
	waitCh  chan error
	running bool
}

func NewServerProcess(opts ProcessOptions) *ServerProcess {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = defaultStartTimeout
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &ServerProcess{opts: opts}
}

// Running also notices a process that exited on its own and reaps it.
func (p *ServerProcess) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return false
	}

	select {
	case err := <-p.waitCh:
		p.opts.Logger.Warn("server process exited unexpectedly", zap.Error(err))
		p.cmd = nil
		p.waitCh = nil
		p.running = false
		return false
	default:
		return true
	}
}

func (p *ServerProcess) HealthURL() string {
	if p.opts.HealthURL != "" {
		return p.opts.HealthURL
	}
	return fmt.Sprintf("http://localhost:%d/health", p.opts.Port)
}

// Launch spawns the server and polls its health endpoint until it answers
// or the start timeout expires. A process that dies during the poll is
// reaped and reported.
func (p *ServerProcess) Launch(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	binary := p.opts.Binary
	if binary == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("%w: resolve executable: %v", ErrProcess, err)
		}
		binary = self
	}

	args := p.opts.Args
	if args == nil {
		args = []string{"serve", "--port", strconv.Itoa(p.opts.Port)}
	}

	cmd := exec.Command(binary, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrProcess, binary, err)
	}

	p.opts.Logger.Info("server process started", zap.Int("pid", cmd.Process.Pid))

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	if err := p.awaitHealthy(ctx, waitCh); err != nil {
		_ = cmd.Process.Kill()
		<-waitCh
		return err
	}

	p.cmd = cmd
	p.waitCh = waitCh
	p.running = true
	p.opts.Logger.Info("server reachable", zap.String("health", p.HealthURL()))
	return nil
}

// Terminate asks the server to shut down, escalating to a hard kill after
// the stop timeout.
func (p *ServerProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.cmd == nil {
		return nil
	}

	pid := p.cmd.Process.Pid
	p.opts.Logger.Info("stopping server process", zap.Int("pid", pid))

	if err := signalStop(p.cmd.Process); err != nil {
		p.opts.Logger.Warn("stop signal failed; killing", zap.Int("pid", pid), zap.Error(err))
		_ = p.cmd.Process.Kill()
	}

	select {
	case <-p.waitCh:
	case <-time.After(p.opts.StopTimeout):
		p.opts.Logger.Warn("server did not exit in time; killing", zap.Int("pid", pid))
		if err := p.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("%w: kill pid %d: %v", ErrProcess, pid, err)
		}
		<-p.waitCh
	}

	p.cmd = nil
	p.waitCh = nil
	p.running = false
	p.opts.Logger.Info("server process stopped", zap.Int("pid", pid))
	return nil
}

func (p *ServerProcess) awaitHealthy(ctx context.Context, waitCh chan error) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.After(p.opts.StartTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrProcess, ctx.Err())
		case err := <-waitCh:
			// Process died before answering; push the exit back for the
			// caller's reap.
			waitCh <- err
			return fmt.Errorf("%w: server process died during startup: %v", ErrProcess, err)
		case <-deadline:
			return fmt.Errorf("%w: server did not become healthy within %s", ErrProcess, p.opts.StartTimeout)
		case <-ticker.C:
			resp, err := client.Get(p.HealthURL())
			if err != nil {
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

func signalStop(proc *os.Process) error {
	if runtime.GOOS == "windows" {
		return proc.Kill()
	}
	return proc.Signal(syscall.SIGTERM)
}
