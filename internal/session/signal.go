package session

import (
	"context"
	"errors"

	"obsdemux/internal/obsws"
)

// HandleSignal routes a lifecycle signal to the matching transition.
func (c *Coordinator) HandleSignal(ctx context.Context, signal obsws.Signal) error {
	switch signal {
	case obsws.SignalStart:
		return c.RecordingStarted(ctx)
	case obsws.SignalStop:
		_, err := c.RecordingStopped(ctx)
		return err
	default:
		return errors.New("unknown signal " + string(signal))
	}
}
