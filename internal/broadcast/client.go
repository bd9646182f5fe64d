package broadcast

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultHeartbeat is the server ping interval; a client missing two
	// heartbeats in a row is dropped.
	DefaultHeartbeat = 30 * time.Second

	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Client binds one websocket connection to a hub subscriber and runs its
// read and write pumps.
type Client struct {
	hub       *Hub
	sub       *Subscriber
	conn      *websocket.Conn
	heartbeat time.Duration
	logger    *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, heartbeat time.Duration, logger *slog.Logger) *Client {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Client{
		hub:       hub,
		sub:       hub.Register(),
		conn:      conn,
		heartbeat: heartbeat,
		logger:    logger.With("component", "broadcast"),
	}
}

// Run services the connection until either pump fails, then tears down the
// subscription. Closing the connection cancels all subscriptions at once.
func (c *Client) Run() {
	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()
	c.readPump()
	c.hub.Unregister(c.sub)
	<-done
}

// readPump consumes control frames. The read deadline allows two missed
// heartbeats before the connection is considered dead.
func (c *Client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	deadline := 2*c.heartbeat + c.heartbeat/2
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket closed unexpectedly", "error", err)
			}
			return
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.logger.Debug("discarding malformed frame", "error", err)
			continue
		}
		c.handle(&f)
	}
}

func (c *Client) handle(f *frame) {
	switch f.Op {
	case "subscribe":
		c.hub.Subscribe(c.sub, f.Topics, f.LastSeq)
	case "unsubscribe":
		c.hub.Unsubscribe(c.sub, f.Topics)
	case "ping":
		_ = c.conn.SetReadDeadline(time.Now().Add(2*c.heartbeat + c.heartbeat/2))
	case "presence":
		if f.Topic != "" && f.State != "" {
			c.hub.Publish(f.Topic, EventPresence, map[string]string{
				"subscriber": c.sub.ID,
				"state":      f.State,
			})
		}
	}
}

// writePump drains the subscriber queue and keeps the heartbeat going. A
// closed queue means the hub dropped us; slow clients get a resync_required
// close reason so they know to refetch.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.heartbeat)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.sub.Queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, EventResyncRequired)
				_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
