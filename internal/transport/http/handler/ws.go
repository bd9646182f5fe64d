package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rosterly/rosterd/internal/broadcast"
)

type WSHandler struct {
	hub       *broadcast.Hub
	upgrader  websocket.Upgrader
	heartbeat time.Duration
	logger    *slog.Logger
}

func NewWSHandler(hub *broadcast.Hub, origins []string, heartbeat time.Duration, logger *slog.Logger) *WSHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
		heartbeat: heartbeat,
		logger:    logger.With("component", "ws_handler"),
	}
}

// Serve upgrades the connection and runs the client pumps until the peer
// goes away. Auth has already happened in the middleware chain.
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	broadcast.NewClient(h.hub, conn, h.heartbeat, h.logger).Run()
}
