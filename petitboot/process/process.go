// Package process is the daemon's process runtime (spec.md §2, "Process
// runtime" row): it spawns external tools (mount, wget, tftp, udhcpc,
// ...), awaits or cancels them, captures stdout line by
// line, and reports the exit status through Wait. Each child started with
// Run is supervised on its own tomb.Tomb, giving the cooperative
// cancellation semantics spec.md §5 requires (a pending task can always be
// cancelled, and Wait still returns after Cancel).
package process

import (
	"bufio"
	"context"
	"os/exec"
	"sync"

	"gopkg.in/tomb.v2"

	"github.com/petitboot/petitboot/shared/logger"
)

// Process is a supervised child process.
type Process struct {
	cmd  *exec.Cmd
	t    tomb.Tomb
	name string

	mu       sync.Mutex
	exitCode int
	exitErr  error
	done     bool

	onLine func(string)
}

// Option configures a spawned Process.
type Option func(*Process)

// WithLineCallback registers a callback invoked for each line of stdout
// the child produces, used by the loader to parse transfer progress
// (spec.md §4.3).
func WithLineCallback(fn func(string)) Option {
	return func(p *Process) { p.onLine = fn }
}

// Run spawns name(args...) under ctx and returns immediately; the caller
// waits via Wait() or registers nothing and fire-and-forgets (startup
// probes use Wait immediately, matching spec.md §5's "run_sync").
func Run(ctx context.Context, name string, args []string, opts ...Option) (*Process, error) {
	p := &Process{name: name}
	for _, opt := range opts {
		opt(p)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	p.cmd = cmd

	var stdout interface{ Read([]byte) (int, error) }
	if p.onLine != nil {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		stdout = pipe
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	if stdout != nil {
		scanner := bufio.NewScanner(stdout)
		p.t.Go(func() error {
			for scanner.Scan() {
				p.onLine(scanner.Text())
			}
			return nil
		})
	}

	p.t.Go(func() error {
		err := cmd.Wait()

		p.mu.Lock()
		p.done = true
		p.exitErr = err
		if cmd.ProcessState != nil {
			p.exitCode = cmd.ProcessState.ExitCode()
		}
		code := p.exitCode
		p.mu.Unlock()

		logExit(name, code, err)

		return err
	})

	return p, nil
}

// RunSync spawns name(args...) and blocks until it exits, matching
// spec.md §5's "short synchronous child processes explicitly marked
// run_sync" — used at startup (e.g. the tftp client version probe) and for
// other one-shot checks.
func RunSync(ctx context.Context, name string, args []string) (stdout []byte, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, runErr := cmd.Output()

	code := 0
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}

	return out, code, runErr
}

// Cancel terminates the child process; Wait still returns (with a
// cancellation-shaped error), satisfying the level-triggered contract of
// spec.md §5.
func (p *Process) Cancel() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.t.Kill(context.Canceled)
}

// Wait blocks until the process and its stdout-capture goroutine have both
// finished, returning the exit code and any error.
func (p *Process) Wait() (int, error) {
	err := p.t.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, firstNonNil(err, p.exitErr)
}

func firstNonNil(a, b error) error {
	if a != nil {
		return a
	}
	return b
}

// Done reports whether the process has exited.
func (p *Process) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func logExit(name string, code int, err error) {
	if err != nil {
		logger.Warn("child process exited with error", logger.Ctx{"cmd": name, "code": code, "err": err})
		return
	}

	logger.Debug("child process exited", logger.Ctx{"cmd": name, "code": code})
}
