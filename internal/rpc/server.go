// Package rpc serves the local control surface as JSON frames over WebSocket:
//
//	Request:  { "type":"req",   "id":"<id>", "method":"<name>", "params":<any> }
//	Response: { "type":"res",   "id":"<id>", "ok":<bool>, "payload":<any>, "error":<ErrorShape> }
//	Event:    { "type":"event", "event":"<name>", "payload":<any> }
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/riverfjs/taskdeck/internal/delivery"
	"github.com/riverfjs/taskdeck/internal/task"
)

const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidParams  = "INVALID_PARAMS"
	CodeMethodNotFound = "METHOD_NOT_FOUND"
	CodeNotFound       = "NOT_FOUND"
	CodeConfig         = "CONFIG_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
)

const writeWait = 10 * time.Second

type RequestFrame struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorShape) Error() string { return e.Code + ": " + e.Message }

// Unwrap lets errors.Is match task.ErrNotFound and delivery.ErrConfig on
// errors that crossed the wire.
func (e *ErrorShape) Unwrap() error {
	switch e.Code {
	case CodeNotFound:
		return task.ErrNotFound
	case CodeConfig:
		return delivery.ErrConfig
	}
	return nil
}

type ResponseFrame struct {
	Type    string      `json:"type"`
	ID      string      `json:"id"`
	Ok      bool        `json:"ok"`
	Payload any         `json:"payload,omitempty"`
	Error   *ErrorShape `json:"error,omitempty"`
}

type EventFrame struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// RespondFn sends the result of a call. A nil err means success.
type RespondFn func(payload any, err error)

// Handler processes a single method call. ctx ends when the client disconnects.
type Handler func(ctx context.Context, params json.RawMessage, respond RespondFn)

// Logger is the subset of the application logger the server needs.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type Server struct {
	upgrader websocket.Upgrader
	logger   Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	clientsMu sync.Mutex
	clients   map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func NewServer(logger Logger) *Server {
	return &Server{
		handlers: make(map[string]Handler),
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			// The listener is bound to loopback by default.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Register adds a handler for the given method name.
func (s *Server) Register(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Methods lists the registered method names.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start listens on addr ("host:port") and serves until ctx is done.
// It returns the bound address, which differs from addr when port 0 is used.
func (s *Server) Start(ctx context.Context, addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("rpc listen %s: %w", addr, err)
	}
	bound := ln.Addr().String()
	s.logger.Infof("[rpc] listening on ws://%s", bound)

	srv := &http.Server{Handler: s, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("[rpc] server error: %v", err)
		}
	}()

	return bound, nil
}

// ServeHTTP upgrades the request to WebSocket and serves frames until the
// client goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("[rpc] upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.logger.Infof("[rpc] client connected from %s", r.RemoteAddr)

	send := func(v any) {
		if err := c.write(v); err != nil {
			s.logger.Errorf("[rpc] write error: %v", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// 1006 is expected from one-shot clients that skip the close handshake.
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				s.logger.Infof("[rpc] client disconnected: %s", r.RemoteAddr)
			} else {
				s.logger.Warnf("[rpc] read error: %v", err)
			}
			return
		}

		var req RequestFrame
		if err := json.Unmarshal(data, &req); err != nil || req.Type != "req" || req.ID == "" || req.Method == "" {
			send(errorFrame(req.ID, &ErrorShape{Code: CodeInvalidRequest, Message: "invalid request frame"}))
			continue
		}

		s.mu.RLock()
		h, ok := s.handlers[req.Method]
		s.mu.RUnlock()

		if !ok {
			send(errorFrame(req.ID, &ErrorShape{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)}))
			continue
		}

		h(ctx, req.Params, func(payload any, err error) {
			if err != nil {
				send(errorFrame(req.ID, toErrorShape(err)))
				return
			}
			send(ResponseFrame{Type: "res", ID: req.ID, Ok: true, Payload: payload})
		})
	}
}

// Broadcast sends an event frame to every connected client.
func (s *Server) Broadcast(event string, payload any) {
	s.clientsMu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	frame := EventFrame{Type: "event", Event: event, Payload: payload}
	for _, c := range clients {
		if err := c.write(frame); err != nil {
			s.logger.Warnf("[rpc] broadcast %s: %v", event, err)
		}
	}
}

// Clients reports the number of connected clients.
func (s *Server) Clients() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func errorFrame(id string, e *ErrorShape) ResponseFrame {
	return ResponseFrame{Type: "res", ID: id, Ok: false, Error: e}
}

func toErrorShape(err error) *ErrorShape {
	var shape *ErrorShape
	switch {
	case errors.As(err, &shape):
		return shape
	case errors.Is(err, task.ErrNotFound):
		return &ErrorShape{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, delivery.ErrConfig):
		return &ErrorShape{Code: CodeConfig, Message: err.Error()}
	default:
		return &ErrorShape{Code: CodeInternal, Message: err.Error()}
	}
}

func invalidParams(format string, args ...any) error {
	return &ErrorShape{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// decode unmarshals params into v; absent params leave v untouched.
func decode(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return invalidParams("invalid params: %v", err)
	}
	return nil
}
