// Package client is the discovery daemon's client library: it dials the
// Discover socket of spec.md §4.9, decodes the connect-time snapshot and
// subsequent pushes, and offers Boot/CancelDefault/Authenticate as simple
// method calls. Grounded on the teacher's client/lxd.go connection setup
// and client/events.go pub-sub idiom, adapted from websocket+JSON to the
// length-prefixed wire protocol.
package client

import (
	"fmt"
	"net"
	"sync"

	"github.com/petitboot/petitboot/petitboot/wire"
	"github.com/petitboot/petitboot/shared/api"
)

// Client is a connection to a Discover server.
type Client struct {
	conn *wire.Conn
	raw  net.Conn

	mu      sync.Mutex
	targets []*EventTarget
	snap    *snapshot

	closed   chan struct{}
	closeErr error
}

// Connect dials the Unix-domain Discover socket at path, matching
// ConnectLXDUnix's role in the teacher (a single entry point that returns
// a ready-to-use client).
func Connect(path string) (*Client, error) {
	raw, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", path, err)
	}

	c := &Client{
		conn:   wire.NewConn(raw),
		raw:    raw,
		snap:   newSnapshot(),
		closed: make(chan struct{}),
	}

	c.targets = append(c.targets, &EventTarget{function: c.snap.apply})

	go c.readLoop()

	return c, nil
}

// Close disconnects from the server.
func (c *Client) Close() error {
	return c.raw.Close()
}

func (c *Client) readLoop() {
	defer close(c.closed)

	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			c.closeErr = err
			return
		}
		c.dispatch(msg)
	}
}

// Wait blocks until the connection is closed by the server or by Close.
func (c *Client) Wait() error {
	<-c.closed
	return c.closeErr
}

func (c *Client) dispatch(msg *wire.Message) {
	ev, ok := decodeEvent(msg)
	if !ok {
		return
	}

	c.mu.Lock()
	targets := make([]*EventTarget, len(c.targets))
	copy(targets, c.targets)
	c.mu.Unlock()

	for _, t := range targets {
		if t.action != 0 && t.action != msg.Action {
			continue
		}
		go t.function(ev)
	}
}

func (c *Client) send(action wire.Action, payload []byte) error {
	return c.conn.WriteMessage(action, payload)
}

// Boot issues a Boot command for optionID, optionally overriding resource
// paths and boot args (spec.md §4.2's BootCommand fields).
func (c *Client) Boot(cmd api.BootCommand) error {
	return c.send(wire.ActionBoot, wire.EncodeBootCommand(&cmd))
}

// CancelDefault cancels the autoboot countdown, if one is running.
func (c *Client) CancelDefault() error {
	return c.send(wire.ActionCancelDefault, nil)
}

// Authenticate sends an Authenticate(Request/Set/Decrypt) message.
func (c *Client) Authenticate(a api.Authenticate) error {
	return c.send(wire.ActionAuthenticate, wire.EncodeAuthenticate(&a))
}
