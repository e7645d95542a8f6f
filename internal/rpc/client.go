package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DialTimeout bounds the WebSocket handshake with a running daemon.
const DialTimeout = time.Second

// Caller invokes a method and decodes its payload into out.
// Both *Client (remote daemon) and *Server (in-process) implement it.
type Caller interface {
	Call(ctx context.Context, method string, params, out any) error
}

type clientResponse struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Ok      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// Client is a WebSocket connection to a running daemon. Calls are
// serialized; event frames received while waiting are skipped.
type Client struct {
	addr string

	mu   sync.Mutex
	conn *websocket.Conn
	seq  uint64
}

// Dial connects to the RPC server at addr ("host:port").
func Dial(ctx context.Context, addr string) (*Client, error) {
	d := websocket.Dialer{HandshakeTimeout: DialTimeout}
	conn, _, err := d.DialContext(ctx, "ws://"+addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to gateway (%s): %w", addr, err)
	}
	return &Client{addr: addr, conn: conn}, nil
}

func (c *Client) Addr() string { return c.addr }

// Call sends one request and waits for the matching response. A failed
// call returns the server's *ErrorShape.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	reqID := fmt.Sprintf("cli-%d-%d", time.Now().UnixNano(), c.seq)

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	req := struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Method string `json:"method"`
		Params any    `json:"params,omitempty"`
	}{Type: "req", ID: reqID, Method: method, Params: params}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send rpc request: %w", err)
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read rpc response: %w", err)
		}
		var res clientResponse
		if err := json.Unmarshal(data, &res); err != nil {
			continue
		}
		if res.Type != "res" || res.ID != reqID {
			continue
		}
		if !res.Ok {
			if res.Error == nil {
				return &ErrorShape{Code: CodeInternal, Message: "rpc error"}
			}
			return res.Error
		}
		if out == nil || len(res.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(res.Payload, out); err != nil {
			return fmt.Errorf("decode %s payload: %w", method, err)
		}
		return nil
	}
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// Call dispatches method in-process and decodes the payload into out the
// same way a remote client would. Handler errors are returned unchanged.
// The handler must respond before returning.
func (s *Server) Call(ctx context.Context, method string, params, out any) error {
	s.mu.RLock()
	h, ok := s.handlers[method]
	s.mu.RUnlock()
	if !ok {
		return &ErrorShape{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", method)}
	}

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode %s params: %w", method, err)
		}
		raw = data
	}

	var (
		payload   any
		callErr   error
		responded bool
	)
	h(ctx, raw, func(p any, err error) {
		payload, callErr, responded = p, err, true
	})
	switch {
	case !responded:
		return &ErrorShape{Code: CodeInternal, Message: fmt.Sprintf("%s: no response", method)}
	case callErr != nil:
		return callErr
	case out == nil:
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", method, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", method, err)
	}
	return nil
}

