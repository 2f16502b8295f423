package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// DefaultDialTimeout bounds how long the CLI waits for the daemon socket.
const DefaultDialTimeout = 2 * time.Second

// Client provides RPC access to the daemon.
type Client struct {
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	return DialTimeout(path, DefaultDialTimeout)
}

// DialTimeout connects with an explicit timeout.
func DialTimeout(path string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return nil, err
	}
	return &Client{client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// invoke calls ServiceName.method and decodes the reply into a fresh Resp.
func invoke[Resp any](c *Client, method string, req any) (*Resp, error) {
	resp := new(Resp)
	if err := c.client.Call(ServiceName+"."+method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Status retrieves daemon, session, and pool state.
func (c *Client) Status() (*StatusResponse, error) {
	return invoke[StatusResponse](c, "Status", StatusRequest{})
}

// JobList returns job history, optionally filtered by status names.
func (c *Client) JobList(statuses []string) (*JobListResponse, error) {
	return invoke[JobListResponse](c, "JobList", JobListRequest{Statuses: statuses})
}

// JobDescribe looks up one job by id or unique id prefix.
func (c *Client) JobDescribe(jobID string) (*JobDescribeResponse, error) {
	return invoke[JobDescribeResponse](c, "JobDescribe", JobDescribeRequest{JobID: jobID})
}

// Enqueue submits an existing recording for demuxing.
func (c *Client) Enqueue(path string) (*EnqueueResponse, error) {
	return invoke[EnqueueResponse](c, "Enqueue", EnqueueRequest{Path: path})
}

// Signal injects a start or stop lifecycle signal.
func (c *Client) Signal(event string) (*SignalResponse, error) {
	return invoke[SignalResponse](c, "Signal", SignalRequest{Event: event})
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return invoke[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
