// internal/fetch/supervisor.go
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
)

// attemptState is the supervisor's per-attempt state machine:
// running -> (progress keeps it running | stalled) -> succeeded | failed.
type attemptState int

const (
	stateRunning attemptState = iota
	stateStalled
	stateSucceeded
	stateFailed
)

func (s attemptState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateStalled:
		return "stalled"
	case stateSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// SupervisorConfig bounds the stall detection and retry policy.
type SupervisorConfig struct {
	MaxRetries     int           // attempts beyond the first; 0 takes the default (2), negative means none
	RetryDelay     time.Duration // fixed delay between attempts, default 30s
	StallTimeout   time.Duration // no-progress threshold, default 180s
	TerminateGrace time.Duration // SIGTERM-to-kill grace, default 5s
}

func (c *SupervisorConfig) applyDefaults() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = 180 * time.Second
	}
	if c.TerminateGrace <= 0 {
		c.TerminateGrace = 5 * time.Second
	}
}

// Supervisor wraps a Monitorable strategy with stall detection and bounded,
// delayed retry. It implements Strategy, so callers dispatch to it like any
// other downloader.
type Supervisor struct {
	strategy Monitorable
	cfg      SupervisorConfig
	fs       afero.Fs
	log      *slog.Logger

	// sleep is a seam so tests do not wait out real retry delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSupervisor wraps the given strategy.
func NewSupervisor(strategy Monitorable, cfg SupervisorConfig, log *slog.Logger) *Supervisor {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		strategy: strategy,
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		log:      log,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch implements Strategy. It makes at most MaxRetries+1 attempts,
// sleeping RetryDelay between them. Permanent failures and missing tools
// short-circuit with zero additional retries. On terminal failure any
// partial output file is removed.
func (s *Supervisor) Fetch(ctx context.Context, req Request) (string, error) {
	attempts := s.cfg.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		final, err := s.runAttempt(ctx, req)
		if err == nil {
			return final, nil
		}
		lastErr = err

		if errors.Is(err, ErrToolNotFound) || errors.Is(err, ErrPermanentSource) {
			s.removePartial(req.Dest)
			return "", err
		}
		if ctx.Err() != nil {
			s.removePartial(req.Dest)
			return "", err
		}

		if attempt < attempts {
			s.log.Warn("download attempt failed, retrying",
				"url", req.URL, "dest", req.Dest, "attempt", attempt,
				"max_attempts", attempts, "error", err)
			if serr := s.sleep(ctx, s.cfg.RetryDelay); serr != nil {
				s.removePartial(req.Dest)
				return "", serr
			}
		}
	}

	s.removePartial(req.Dest)
	return "", fmt.Errorf("download failed after %d attempts: %w", attempts, lastErr)
}

// runAttempt drives the state machine for a single attempt. Any parsed
// progress event that advances either the byte or the fragment counter
// resets the stall timer.
func (s *Supervisor) runAttempt(ctx context.Context, req Request) (string, error) {
	att, err := s.strategy.Start(ctx, req)
	if err != nil {
		return "", err
	}

	state := stateRunning
	defer func() {
		s.log.Debug("attempt finished", "url", req.URL, "state", state.String())
	}()

	var last Progress
	timer := time.NewTimer(s.cfg.StallTimeout)
	defer timer.Stop()

	progress := att.Progress
	for {
		select {
		case p, ok := <-progress:
			if !ok {
				progress = nil // output finished; wait for the exit status
				continue
			}
			if p.Advanced(last) {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.cfg.StallTimeout)
			}
			last = p

		case err := <-att.Done:
			if err != nil {
				state = stateFailed
				return "", err
			}
			if ok, _ := afero.Exists(s.fs, req.Dest); !ok {
				state = stateFailed
				return "", fmt.Errorf("download of %s exited cleanly but %s is missing", req.URL, req.Dest)
			}
			state = stateSucceeded
			return req.Dest, nil

		case <-timer.C:
			state = stateStalled
			s.log.Warn("download stalled, terminating",
				"url", req.URL, "stall_timeout", s.cfg.StallTimeout,
				"bytes", last.Bytes, "fragment", last.Fragment)
			att.Terminate(s.cfg.TerminateGrace)
			<-att.Done // reap the exit status
			return "", fmt.Errorf("%w: no progress for %s (at %d bytes, fragment %d/%d)",
				ErrStallTimeout, s.cfg.StallTimeout, last.Bytes, last.Fragment, last.TotalFragments)

		case <-ctx.Done():
			att.Terminate(s.cfg.TerminateGrace)
			<-att.Done
			return "", ctx.Err()
		}
	}
}

func (s *Supervisor) removePartial(dest string) {
	if ok, _ := afero.Exists(s.fs, dest); ok {
		if err := s.fs.Remove(dest); err != nil {
			s.log.Warn("failed to remove partial file", "dest", dest, "error", err)
		}
	}
}
