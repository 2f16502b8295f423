package obsws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"obsdemux/internal/services"
)

// conn is a single authenticated websocket session.
type conn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	nextID uint64
	stop   func() bool
}

func dial(ctx context.Context, address, password string) (*conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	ws, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrControllerUnreachable, "obsws", "dial", address, err)
	}
	c := &conn{ws: ws}
	// unblock reads when the caller gives up
	c.stop = context.AfterFunc(ctx, func() { _ = ws.Close() })
	if err := c.authenticate(ctx, password); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *conn) Close() {
	if c.stop != nil {
		c.stop()
	}
	_ = c.ws.Close()
}

func (c *conn) authenticate(ctx context.Context, password string) error {
	var challenge authRequiredResponse
	if err := c.call(ctx, requestGetAuthRequired, nil, &challenge); err != nil {
		return err
	}
	if !challenge.AuthRequired {
		return nil
	}
	if password == "" {
		return services.Wrap(services.ErrControllerAuth, "obsws", "authenticate", "server requires a password but none is configured", nil)
	}
	params := map[string]any{"auth": AuthResponse(password, challenge.Salt, challenge.Challenge)}
	if err := c.call(ctx, requestAuthenticate, params, nil); err != nil {
		return services.Wrap(services.ErrControllerAuth, "obsws", "authenticate", "password rejected", err)
	}
	return nil
}

// call sends a request and waits for the matching response, skipping any
// events that arrive in between.
func (c *conn) call(ctx context.Context, requestType string, params map[string]any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := strconv.FormatUint(c.nextID, 10)
	payload := make(map[string]any, len(params)+2)
	for k, v := range params {
		payload[k] = v
	}
	payload["request-type"] = requestType
	payload["message-id"] = id

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
		_ = c.ws.SetReadDeadline(deadline)
		defer func() {
			_ = c.ws.SetWriteDeadline(time.Time{})
			_ = c.ws.SetReadDeadline(time.Time{})
		}()
	}
	if err := c.ws.WriteJSON(payload); err != nil {
		return c.transportError(ctx, requestType, err)
	}
	for {
		msg, err := c.read()
		if err != nil {
			return c.transportError(ctx, requestType, err)
		}
		if msg.isEvent() || msg.MessageID != id {
			continue
		}
		if msg.Status != statusOK {
			return fmt.Errorf("%s: %s", requestType, msg.Error)
		}
		if out == nil {
			return nil
		}
		if err := msg.decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", requestType, err)
		}
		return nil
	}
}

func (c *conn) read() (*message, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	msg := &message{raw: json.RawMessage(data)}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

func (c *conn) transportError(ctx context.Context, requestType string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return services.Wrap(services.ErrControllerUnreachable, "obsws", requestType, "request abandoned", ctxErr)
	}
	return services.Wrap(services.ErrControllerUnreachable, "obsws", requestType, "connection lost", err)
}
