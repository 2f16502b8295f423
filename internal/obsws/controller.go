package obsws

import (
	"context"
	"log/slog"
	"time"

	"obsdemux/internal/logging"
)

// Controller queries OBS over short-lived connections.
type Controller struct {
	address  string
	password string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewController builds a controller for the websocket address.
func NewController(address, password string, timeout time.Duration, logger *slog.Logger) *Controller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Controller{
		address:  address,
		password: password,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "obsws"),
	}
}

// QueryRecording returns the recording folder and the active output file name.
func (c *Controller) QueryRecording(ctx context.Context) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cn, err := dial(ctx, c.address, c.password)
	if err != nil {
		return "", "", err
	}
	defer cn.Close()

	var folder recordingFolderResponse
	if err := cn.call(ctx, requestGetRecordingFolder, nil, &folder); err != nil {
		return "", "", err
	}
	var status recordingStatusResponse
	if err := cn.call(ctx, requestGetRecordingStatus, nil, &status); err != nil {
		return "", "", err
	}
	c.logger.Debug("recording location resolved",
		logging.String("folder", folder.Folder),
		logging.String("filename", status.Filename),
		logging.Bool("recording", status.IsRecording),
	)
	return folder.Folder, status.Filename, nil
}

// Ping verifies that OBS is reachable and the password is accepted.
func (c *Controller) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	cn, err := dial(ctx, c.address, c.password)
	if err != nil {
		return err
	}
	cn.Close()
	return nil
}
