// internal/fetch/exec.go
package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// runner starts external downloader processes. Tests substitute a fake.
type runner interface {
	Start(ctx context.Context, name string, args ...string) (process, error)
}

// process is a running external downloader.
type process interface {
	// Lines streams the combined stdout/stderr of the process, one line at
	// a time. The channel closes when the process exits.
	Lines() <-chan string
	// Wait blocks until the process exits; nil means exit status zero.
	Wait() error
	// Terminate asks the process to stop, escalating to a hard kill if it
	// has not exited after the grace period.
	Terminate(grace time.Duration)
}

type execRunner struct{}

func (execRunner) Start(ctx context.Context, name string, args ...string) (process, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", name, ErrToolNotFound)
		}
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	p := &execProcess{
		cmd:   cmd,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
	}

	go func() {
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
		// The scan stops early on an oversized line. Keep draining the pipe
		// so the child's pending writes never block and Wait can return.
		_, _ = io.Copy(io.Discard, pr)
		close(p.lines)
	}()

	go func() {
		p.err = cmd.Wait()
		_ = pw.Close()
		close(p.done)
	}()

	return p, nil
}

type execProcess struct {
	cmd   *exec.Cmd
	lines chan string
	done  chan struct{}
	err   error
}

func (p *execProcess) Lines() <-chan string { return p.lines }

func (p *execProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *execProcess) Terminate(grace time.Duration) {
	if p.cmd.Process == nil {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(grace):
		_ = p.cmd.Process.Kill()
	}
}

// tail keeps the last few output lines of a child process so terminal
// failures carry enough context to triage without re-running.
type tail struct {
	lines []string
	max   int
}

func newTail(max int) *tail {
	return &tail{max: max}
}

func (t *tail) Add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tail) String() string {
	return strings.Join(t.lines, " | ")
}
