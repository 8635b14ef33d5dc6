package ws

import (
	"club-chat/errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type wsConn struct {
	id        string
	conn      *websocket.Conn
	userID    string
	sendMu    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, userID string) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		conn:   c,
		userID: userID,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Send serializes writes, gorilla connections support one concurrent writer.
func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) sendError(frame string, err error) {
	_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{
		Frame:  frame,
		Error:  err.Error(),
		Status: errors.MapToHTTPStatus(err),
	}})
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
