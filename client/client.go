// Package client drives a chat session over the websocket endpoint.
package client

import (
	"club-chat/domain/chat"
	"club-chat/infrastructure/ws"
	"club-chat/session"
	"context"
	"encoding/json"
	"fmt"
	"io"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = fmt.Errorf("client: connection closed")

type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (f Frame) View() (ws.ViewPayload, error) {
	var p ws.ViewPayload
	return p, json.Unmarshal(f.Payload, &p)
}

func (f Frame) Unread() (ws.UnreadPayload, error) {
	var p ws.UnreadPayload
	return p, json.Unmarshal(f.Payload, &p)
}

func (f Frame) Error() (ws.ErrorPayload, error) {
	var p ws.ErrorPayload
	return p, json.Unmarshal(f.Payload, &p)
}

type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	inCh   chan Frame
	closed bool
}

// Dial opens a session on the club. baseURL is the http(s) or ws(s) root of the server.
func Dial(ctx context.Context, baseURL string, clubID chat.ClubID, token string) (*Client, error) {
	u, err := neturl.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/clubs/" + neturl.PathEscape(string(clubID))
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("client: dial failed with %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		return nil, err
	}

	c := &Client{conn: conn, inCh: make(chan Frame, 128)}
	go c.reader()
	return c, nil
}

func (c *Client) reader() {
	defer close(c.inCh)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		c.inCh <- f
	}
}

func (c *Client) send(frameType string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.conn.WriteJSON(ws.Message{Type: frameType, Payload: payload})
}

func (c *Client) SetInput(text string) error {
	return c.send(ws.TypeInput, ws.InputPayload{Text: text})
}

func (c *Client) Submit() error  { return c.send(ws.TypeSubmit, nil) }
func (c *Client) Retry() error   { return c.send(ws.TypeRetry, nil) }
func (c *Client) Dismiss() error { return c.send(ws.TypeDismiss, nil) }
func (c *Client) Read() error    { return c.send(ws.TypeRead, nil) }
func (c *Client) SignOut() error { return c.send(ws.TypeSignOut, nil) }

func (c *Client) SignIn(token string) error {
	return c.send(ws.TypeSignIn, ws.SignInPayload{Token: token})
}

func (c *Client) Switch(clubID chat.ClubID, clubName string) error {
	return c.send(ws.TypeSwitch, ws.SwitchPayload{ClubID: clubID, ClubName: clubName})
}

// Send writes a raw frame, for frame types the helpers do not cover.
func (c *Client) Send(frameType string, payload any) error {
	return c.send(frameType, payload)
}

func (c *Client) Next(ctx context.Context) (Frame, error) {
	select {
	case f, ok := <-c.inCh:
		if !ok {
			return Frame{}, ErrClosed
		}
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// NextOf skips frames until one of the given type arrives.
func (c *Client) NextOf(ctx context.Context, frameType string) (Frame, error) {
	for {
		f, err := c.Next(ctx)
		if err != nil || f.Type == frameType {
			return f, err
		}
	}
}

// WaitView skips views until one satisfies the predicate.
func (c *Client) WaitView(ctx context.Context, match func(session.View) bool) (ws.ViewPayload, error) {
	for {
		f, err := c.NextOf(ctx, ws.TypeView)
		if err != nil {
			return ws.ViewPayload{}, err
		}
		p, err := f.View()
		if err != nil {
			return ws.ViewPayload{}, err
		}
		if match(p.View) {
			return p, nil
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}
