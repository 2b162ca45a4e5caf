// README: Websocket endpoint for live ride updates. The registry keeps
// one socket per user; a reconnect replaces the old session.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"savari/internal/dispatch"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// auth happens in middleware; the origin check is the gateway's job
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandler struct {
	registry *dispatch.WSRegistry
	log      *zap.Logger
}

func NewWSHandler(registry *dispatch.WSRegistry, log *zap.Logger) *WSHandler {
	return &WSHandler{registry: registry, log: log}
}

func (h *WSHandler) Connect(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	h.registry.Add(userID, conn)

	// drain the read side so pings and closes are processed
	go func() {
		defer h.registry.Remove(userID)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
