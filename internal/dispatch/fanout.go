package dispatch

import (
	"context"

	"savari/internal/types"
)

// Notifier is the outbound notification contract shared by all
// transports in this package.
type Notifier interface {
	Notify(ctx context.Context, userID types.ID, title, body string, meta map[string]string)
}

// wsPayload is the frame pushed over a live socket.
type wsPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Fanout delivers over the live websocket when one is connected and
// always falls through to the next transport (push or log).
type Fanout struct {
	ws   *WSRegistry
	next Notifier
}

func NewFanout(ws *WSRegistry, next Notifier) *Fanout {
	return &Fanout{ws: ws, next: next}
}

func (f *Fanout) Notify(ctx context.Context, userID types.ID, title, body string, meta map[string]string) {
	if f.ws != nil {
		_ = f.ws.Push(userID, wsPayload{Title: title, Body: body, Meta: meta})
	}
	if f.next != nil {
		f.next.Notify(ctx, userID, title, body, meta)
	}
}
