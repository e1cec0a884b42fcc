// Package transcriptfeed consumes the backend-relayed transcript channel:
// finalized entries pushed by the server-side pipeline, filtered client-side
// by room identity.
package transcriptfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lexlive/internal/domain"
	"lexlive/internal/logging"
)

// Channel is the transcript delivery websocket. One channel per active
// session: Connect while connected warns and leaves the open socket alone,
// and Disconnect is idempotent.
type Channel struct {
	url string
	log zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

func NewChannel(url string) *Channel {
	return &Channel{url: url, log: logging.Component("transcriptfeed")}
}

// Connect opens the socket and forwards matching transcript messages to the
// handler. Messages for other rooms and malformed payloads are dropped; the
// channel stays open through both.
func (c *Channel) Connect(ctx context.Context, roomName string, handler func(domain.TranscriptMessage)) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		c.log.Warn().Msg("transcript channel already connected, ignoring connect")
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to open transcript channel: %w", err)
	}

	c.conn = conn
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.readLoop(conn, done, roomName, handler)
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}, roomName string, handler func(domain.TranscriptMessage)) {
	defer close(done)
	defer c.clear(conn)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Warn().Err(err).Msg("transcript channel closed")
			}
			return
		}

		var message domain.TranscriptMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed transcript payload")
			continue
		}
		if message.Type != "transcript" {
			continue
		}
		if roomName != "" && message.RoomName != roomName {
			continue
		}
		handler(message)
	}
}

// clear detaches conn if it is still the active socket, so a stale read
// loop cannot tear down a newer connection.
func (c *Channel) clear(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
}

// Disconnect closes the channel. Safe to call repeatedly or while idle.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	if done != nil {
		<-done
	}
}
