package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"

	"obsdemux/internal/logging"
	"obsdemux/internal/services"
)

// ErrLocked reports that another process still holds a lock on the file.
var ErrLocked = errors.New("file is locked")

// Policy controls probe cadence and bounds.
type Policy struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	StableChecks int
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{PollInterval: 5 * time.Second, MaxWait: time.Hour, StableChecks: 2}
}

func (p Policy) normalized() Policy {
	if p.PollInterval <= 0 {
		p.PollInterval = 5 * time.Second
	}
	if p.StableChecks < 1 {
		p.StableChecks = 1
	}
	return p
}

// Probe inspects path once and returns the observed size when the file is
// available to this process.
type Probe func(path string) (int64, error)

// Gate blocks callers until a file is released.
type Gate struct {
	policy Policy
	probe  Probe
	logger *slog.Logger
}

// Option customizes a Gate.
type Option func(*Gate)

// WithProbe replaces the filesystem probe.
func WithProbe(p Probe) Option {
	return func(g *Gate) {
		if p != nil {
			g.probe = p
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate constructs a Gate for the given policy.
func NewGate(policy Policy, opts ...Option) *Gate {
	g := &Gate{policy: policy.normalized(), probe: ProbeFile}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.NewComponentLogger(g.logger, "readiness")
	return g
}

// Policy returns the effective policy.
func (g *Gate) Policy() Policy { return g.policy }

// Await returns nil once StableChecks consecutive probes succeed with an
// unchanged size. It returns ctx.Err() on cancellation and an ErrTimedOut
// wrapped error when MaxWait elapses first.
func (g *Gate) Await(ctx context.Context, path string) error {
	logger := logging.WithContext(ctx, g.logger)
	started := time.Now()

	var deadline <-chan time.Time
	if g.policy.MaxWait > 0 {
		timer := time.NewTimer(g.policy.MaxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	var (
		streak   int
		lastSize int64 = -1
		lastErr  error
		attempts int
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempts++
		size, err := g.probe(path)
		switch {
		case err != nil:
			streak = 0
			lastSize = -1
			lastErr = err
			logger.Debug("file not ready", logging.String("path", path), logging.Int("attempt", attempts), logging.Error(err))
		case streak > 0 && size != lastSize:
			streak = 1
			lastSize = size
			logger.Debug("file still growing", logging.String("path", path), logging.Int64("size", size))
		default:
			streak++
			lastSize = size
		}
		if streak >= g.policy.StableChecks {
			logger.Info("file released",
				logging.String("path", path),
				logging.Int64("size", lastSize),
				logging.Duration("waited", time.Since(started).Round(time.Millisecond)),
				logging.String(logging.FieldEventType, "file_ready"),
			)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			msg := fmt.Sprintf("%s not released after %s", path, g.policy.MaxWait)
			return services.Wrap(services.ErrTimedOut, "readiness", "await", msg, lastErr)
		case <-time.After(g.policy.PollInterval):
		}
	}
}

// ProbeFile opens path for append and takes a non-blocking shared lock. A
// missing file, an open failure, or a held exclusive lock all count as not
// ready.
func ProbeFile(path string) (int64, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	lock := flock.New(path)
	locked, err := lock.TryRLock()
	if err != nil {
		return 0, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return 0, ErrLocked
	}
	defer func() { _ = lock.Unlock() }()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
