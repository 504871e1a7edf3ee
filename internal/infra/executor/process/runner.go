// Package process launches the external rendering application and tracks its
// liveness.
package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	domain "github.com/bryanwahyu/texture-automaton/internal/domain/textures"
)

// Runner starts executables with their own directory as working directory.
type Runner struct {
	Args []string
	// Stdout and Stderr default to the parent's streams.
	Stdout *os.File
	Stderr *os.File
}

var _ domain.Launcher = (*Runner)(nil)

func NewRunner(args ...string) *Runner {
	return &Runner{Args: args, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Launch starts exePath. The child is not tied to ctx and keeps running after
// the scheduler stops.
func (r *Runner) Launch(ctx context.Context, exePath string) (domain.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(exePath)
	if err != nil {
		return nil, fmt.Errorf("process: resolve %s: %w", exePath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("process: %s is a directory", abs)
	}

	cmd := exec.Command(abs, r.Args...)
	cmd.Dir = filepath.Dir(abs)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", abs, err)
	}

	p := &Process{cmd: cmd, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

// Process is a running child. A single goroutine reaps it and closes Done.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	fields := log.Fields{"pid": p.PID()}
	if err != nil {
		log.WithError(err).WithFields(fields).Info("process: exited")
	} else {
		log.WithFields(fields).Info("process: exited cleanly")
	}
	close(p.done)
}

func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) PID() int { return p.cmd.Process.Pid }

// Err is the exit error once Done is closed.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Kill terminates the child if it is still running.
func (p *Process) Kill() error {
	if !p.Alive() {
		return nil
	}
	return p.cmd.Process.Kill()
}
