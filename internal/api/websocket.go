package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/ReelEngine/internal/events"
	"github.com/AaronLay10/ReelEngine/internal/logger"
)

const (
	// Number of recent events replayed to a new client.
	recentEventsCount = 50

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Players and operator consoles are served from other origins.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// eventClient is one WebSocket connection following the event stream.
type eventClient struct {
	conn *websocket.Conn
	sub  events.Subscriber
	log  *logger.Logger
	once sync.Once

	// replayed is the newest history event sent; live events up to it are
	// already on the wire.
	replayed uint64
}

// wsEventsHandler streams live events. With ?session=<id> only that session's
// events are sent, which is what a player UI subscribes to.
func (s *Server) wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "error", err)
		return
	}

	// Subscribe before replaying history so nothing emitted in between is lost.
	c := &eventClient{
		conn: conn,
		sub:  events.SubscribeSession(sessionID),
		log:  s.log,
	}
	defer c.close()

	for _, e := range events.RecentSessionEvents(sessionID, recentEventsCount) {
		if err := c.write(e); err != nil {
			c.log.Debug("ws write recent event failed", "error", err)
			return
		}
		c.replayed = e.Seq
	}

	done := make(chan struct{})
	go c.readPump(done)
	c.writePump(done)
}

// readPump consumes pongs and close frames. It closes done when the peer goes away.
func (c *eventClient) readPump(done chan<- struct{}) {
	defer close(done)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards subscribed events and keeps the connection alive.
func (c *eventClient) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case e, ok := <-c.sub:
			if !ok {
				// Server shutdown closed the stream.
				return
			}
			if !c.fresh(e) {
				continue
			}
			if err := c.write(e); err != nil {
				c.log.Debug("ws write event failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// fresh reports whether a live event was not part of the replayed history.
func (c *eventClient) fresh(e events.Event) bool {
	return e.Seq > c.replayed
}

func (c *eventClient) write(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *eventClient) close() {
	c.once.Do(func() {
		events.Unsubscribe(c.sub)
		c.conn.Close()
	})
}
