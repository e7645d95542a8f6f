package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/riverfjs/taskdeck/internal/bus"
)

// Publisher queues a notice for every notification sink.
type Publisher interface {
	Publish(n bus.Notice) bool
}

// RegisterNotifyHandlers registers notify.send, which lets local scripts push
// a notice through the same sinks as reminders (desktop, Telegram).
//
//	Request:  { "type":"req", "id":"1", "method":"notify.send",
//	            "params": { "title":"Build finished", "message":"..." } }
//	Response: { "type":"res", "id":"1", "ok":true, "payload":{"queued":true} }
func RegisterNotifyHandlers(s *Server, pub Publisher) {
	s.Register("notify.send", func(_ context.Context, params json.RawMessage, respond RespondFn) {
		var p struct {
			Title   string `json:"title"`
			Message string `json:"message"`
		}
		if err := decode(params, &p); err != nil {
			respond(nil, err)
			return
		}
		if p.Message == "" {
			respond(nil, invalidParams("missing message"))
			return
		}
		if p.Title == "" {
			p.Title = "Taskdeck"
		}
		queued := pub.Publish(bus.Notice{
			Title:  p.Title,
			Body:   p.Message,
			Source: bus.SourceRPC,
			Time:   time.Now(),
		})
		if !queued {
			respond(nil, &ErrorShape{Code: CodeInternal, Message: bus.ErrFull.Error()})
			return
		}
		respond(map[string]any{"queued": true}, nil)
	})
}
