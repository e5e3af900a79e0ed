package ws

import (
	"encoding/json"
	"sync"
	"time"

	"readearn/internal/logger"
	"readearn/internal/reading"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	sendBuffer = 64
)

// Client streams the events of one reading session to one websocket.
type Client struct {
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte

	Hub     *Hub
	session *reading.Session

	Done      chan struct{}
	closeOnce sync.Once
	sendMu    sync.Mutex
	closed    bool
}

func NewClient(sid string, conn *websocket.Conn, hub *Hub, session *reading.Session) *Client {
	return &Client{
		SessionID: sid,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		Hub:       hub,
		session:   session,
		Done:      make(chan struct{}),
	}
}

// Run blocks until the socket disconnects or the session is closed.
func (c *Client) Run() {
	c.Hub.register(c)

	events, unsubscribe := c.session.Subscribe()

	go c.writePump()
	c.enqueue(Envelope{Type: MsgReady})

	go c.forward(events)

	// readPump returns on disconnect
	c.readPump()
	unsubscribe()
	c.Hub.unregister(c)

	// the last view of the article is gone without a leave message
	if c.Hub.Watching(c.session) == 0 && c.session.Abandon() {
		logger.Debug("ws: reading abandoned on disconnect", "sid", c.SessionID, "slug", c.session.Article().Slug)
	}
	<-c.Done
}

// forward copies session events to the socket. Events are dropped when the
// socket falls behind; the next event carries the full snapshot anyway.
func (c *Client) forward(events <-chan reading.Event) {
	for ev := range events {
		c.enqueue(Envelope{Type: MsgEvent, Event: &ev})
	}
	c.close()
}

func (c *Client) enqueue(env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		logger.Error("ws: marshal failed", "error", err)
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- msg:
	default:
		wsDropped.Inc()
		logger.Debug("ws: client too slow, event dropped", "sid", c.SessionID)
	}
}

// close ends the send side; writePump then sends a close frame.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.Send)
		c.sendMu.Unlock()
	})
}

//read
func (c *Client) readPump() {
	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws: read error", "sid", c.SessionID, "error", err)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		c.enqueue(Envelope{Type: MsgError, Message: "invalid message"})
		return
	}
	switch in.Type {
	case MsgPing:
		c.enqueue(Envelope{Type: MsgPong})
	case MsgLeave:
		// the reader left the article view: stop the timer
		c.session.Cancel()
	default:
		c.enqueue(Envelope{Type: MsgError, Message: "unknown message type: " + in.Type})
	}
}

//write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		close(c.Done)
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws: write error", "sid", c.SessionID, "error", err)
				c.close()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
