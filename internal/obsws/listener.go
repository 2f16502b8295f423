package obsws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"obsdemux/internal/logging"
	"obsdemux/internal/services"
)

// Signal is a recording lifecycle event.
type Signal string

const (
	SignalStart Signal = "start"
	SignalStop  Signal = "stop"
)

// ParseSignal accepts "start" or "stop".
func ParseSignal(value string) (Signal, error) {
	switch Signal(value) {
	case SignalStart, SignalStop:
		return Signal(value), nil
	default:
		return "", services.Wrap(services.ErrValidation, "obsws", "parse signal", "expected start or stop, got "+value, nil)
	}
}

// SignalHandler reacts to lifecycle signals.
type SignalHandler interface {
	HandleSignal(ctx context.Context, signal Signal) error
}

const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
	// signalBacklog bounds signals read from OBS but not yet handled.
	signalBacklog = 32
)

// Listener subscribes to OBS events and dispatches them to a handler.
type Listener struct {
	address  string
	password string
	handler  SignalHandler
	logger   *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	connected atomic.Bool
	wg        sync.WaitGroup
}

// ListenerOption customizes a Listener.
type ListenerOption func(*Listener)

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(minDelay, maxDelay time.Duration) ListenerOption {
	return func(l *Listener) {
		if minDelay > 0 {
			l.minBackoff = minDelay
		}
		if maxDelay >= l.minBackoff {
			l.maxBackoff = maxDelay
		}
	}
}

// NewListener constructs a listener.
func NewListener(address, password string, handler SignalHandler, logger *slog.Logger, opts ...ListenerOption) *Listener {
	l := &Listener{
		address:    address,
		password:   password,
		handler:    handler,
		logger:     logging.NewComponentLogger(logger, "obsws-listener"),
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connected reports whether the event connection is currently up.
func (l *Listener) Connected() bool { return l.connected.Load() }

// Run keeps an event connection open until ctx is done. Signals are handled
// one at a time, in the order OBS sent them, on a single dispatch goroutine;
// Run waits for it before returning.
func (l *Listener) Run(ctx context.Context) {
	signals := make(chan Signal, signalBacklog)
	l.wg.Add(1)
	go l.dispatchLoop(ctx, signals)
	defer func() {
		close(signals)
		l.wg.Wait()
	}()

	delay := l.minBackoff
	attempt := 0
	for ctx.Err() == nil {
		attempt++
		cn, err := dial(ctx, l.address, l.password)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			hint := "start OBS and enable obs-websocket"
			if errors.Is(err, services.ErrControllerAuth) {
				hint = "check obs.password or OBS_WEBSOCKET_PASSWORD"
			}
			logging.WarnWithContext(l.logger, "obs event connection failed", "obs_connect_failed",
				logging.String("address", l.address),
				logging.Int("attempt", attempt),
				logging.Duration("retry_in", delay),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hint),
				logging.String(logging.FieldImpact, "recordings are not detected until OBS is reachable"),
			)
			if !sleep(ctx, delay) {
				return
			}
			delay = min(delay*2, l.maxBackoff)
			continue
		}

		l.connected.Store(true)
		l.logger.Info("obs event connection established",
			logging.String("address", l.address),
			logging.Int("attempt", attempt),
			logging.String(logging.FieldEventType, "obs_connected"),
		)
		attempt = 0
		delay = l.minBackoff

		err = l.readEvents(ctx, cn, signals)
		cn.Close()
		l.connected.Store(false)
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(l.logger, "obs event connection lost", "obs_disconnected",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "OBS was closed or restarted"),
			logging.String(logging.FieldImpact, "reconnecting; signals during the gap are missed"),
		)
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (l *Listener) readEvents(ctx context.Context, cn *conn, signals chan<- Signal) error {
	for {
		msg, err := cn.read()
		if err != nil {
			return err
		}
		var signal Signal
		switch msg.UpdateType {
		case eventRecordingStarted:
			signal = SignalStart
		case eventRecordingStopped:
			signal = SignalStop
		default:
			continue
		}
		select {
		case signals <- signal:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Listener) dispatchLoop(ctx context.Context, signals <-chan Signal) {
	defer l.wg.Done()
	for signal := range signals {
		l.dispatch(ctx, signal)
	}
}

func (l *Listener) dispatch(ctx context.Context, signal Signal) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, l.logger)
	logger.Debug("obs signal received", logging.String("signal", string(signal)))
	if err := l.handler.HandleSignal(ctx, signal); err != nil {
		logger.Debug("obs signal handling failed",
			logging.String("signal", string(signal)),
			logging.Error(err),
		)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
