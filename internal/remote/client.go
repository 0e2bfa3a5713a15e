// ABOUTME: WebSocket client for the speaker control endpoint
// ABOUTME: Sends command lines, matches results by ID, and streams status updates
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrClosed is returned for commands on a closed client
var ErrClosed = errors.New("remote: connection closed")

// ClientConfig holds client configuration
type ClientConfig struct {
	Addr   string // host:port
	Path   string // default: DefaultPath
	Logger zerolog.Logger
}

// Client is a controller connection to one speaker
type Client struct {
	config ClientConfig
	conn   *websocket.Conn
	log    zerolog.Logger
	hello  Hello

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Result
	closed  bool

	// Statuses receives every status pushed by the speaker
	Statuses chan Status

	done chan struct{}
}

// Dial connects and waits for the speaker's hello
func Dial(ctx context.Context, config ClientConfig) (*Client, error) {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	u := url.URL{Scheme: "ws", Host: config.Addr, Path: config.Path}
	log := config.Logger.With().Str("component", "remote-client").Logger()
	log.Debug().Str("url", u.String()).Msg("Connecting")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &Client{
		config:   config,
		conn:     conn,
		log:      log,
		pending:  make(map[string]chan Result),
		Statuses: make(chan Status, 16),
		done:     make(chan struct{}),
	}

	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return c, nil
}

// handshake reads the speaker hello
func (c *Client) handshake() error {
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer c.conn.SetReadDeadline(time.Time{})

	var msg Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read hello: %w", err)
	}
	if msg.Type != TypeHello {
		return fmt.Errorf("expected %s, got %s", TypeHello, msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, &c.hello); err != nil {
		return fmt.Errorf("failed to parse hello: %w", err)
	}

	c.log.Debug().Str("speaker", c.hello.Name).Str("version", c.hello.Version).Msg("Handshake complete")
	return nil
}

// Hello returns the speaker identity received on connect
func (c *Client) Hello() Hello {
	return c.hello
}

// Command runs one shell command line on the speaker
func (c *Client) Command(ctx context.Context, line string) (Result, error) {
	id := uuid.New().String()
	reply := make(chan Result, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{}, ErrClosed
	}
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	msg, err := newMessage(TypeCommand, id, Command{Line: line})
	if err != nil {
		return Result{}, err
	}

	c.writeMu.Lock()
	err = c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		return Result{}, fmt.Errorf("failed to send command: %w", err)
	}

	select {
	case r := <-reply:
		return r, nil
	case <-c.done:
		return Result{}, ErrClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// readMessages routes results and statuses until the connection ends
func (c *Client) readMessages() {
	defer c.Close()
	defer close(c.Statuses)

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.log.Debug().Err(err).Msg("Read ended")
			return
		}

		switch msg.Type {
		case TypeResult:
			var r Result
			if err := json.Unmarshal(msg.Payload, &r); err != nil {
				c.log.Warn().Err(err).Msg("Failed to parse result")
				continue
			}
			c.mu.Lock()
			reply, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if ok {
				reply <- r
			}

		case TypeStatus:
			var st Status
			if err := json.Unmarshal(msg.Payload, &st); err != nil {
				c.log.Warn().Err(err).Msg("Failed to parse status")
				continue
			}
			select {
			case c.Statuses <- st:
			default:
				// dropped when nobody is reading
			}

		default:
			c.log.Debug().Str("type", msg.Type).Msg("Unknown message type")
		}
	}
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return c.conn.Close()
}
