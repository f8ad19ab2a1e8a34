package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voxelstream.ai/internal/protocol"
)

// Client is the update loop's side of the connection. It implements the
// loop's inbound source (TryRecv) and outbound sink (Send).
type Client struct {
	conn   *websocket.Conn
	id     uint64
	params protocol.WorldParams

	in   chan protocol.ServerUpdate
	outc chan []byte

	done chan struct{}
	once sync.Once
}

// Dial connects, performs the hello/welcome handshake and starts the read
// and write pumps.
func Dial(url, name string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil || welcome.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %q", msg)
	}
	if welcome.ProtocolVersion != protocol.Version {
		_ = conn.Close()
		return nil, fmt.Errorf("protocol version mismatch: server %s, client %s", welcome.ProtocolVersion, protocol.Version)
	}

	c := &Client{
		conn:   conn,
		id:     welcome.ClientID,
		params: welcome.WorldParams,
		in:     make(chan protocol.ServerUpdate, 256),
		outc:   make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

func (c *Client) ID() uint64 {
	return c.id
}

func (c *Client) WorldParams() protocol.WorldParams {
	return c.params
}

// TryRecv hands out the next queued server update without blocking.
func (c *Client) TryRecv() (protocol.ServerUpdate, bool) {
	select {
	case u := <-c.in:
		return u, true
	default:
		return nil, false
	}
}

// Send marshals and queues one outbound message. It blocks only when the
// write pump is backed up, which the update loop's request cap keeps rare.
func (c *Client) Send(u protocol.ClientUpdate) {
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	select {
	case c.outc <- b:
	case <-c.done:
	}
}

func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.conn.Close()
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	defer c.once.Do(func() { close(c.done) })
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		up, err := protocol.DecodeServerUpdate(msg)
		if err != nil {
			continue
		}
		select {
		case c.in <- up:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.outc:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.once.Do(func() { close(c.done) })
				return
			}
		}
	}
}
