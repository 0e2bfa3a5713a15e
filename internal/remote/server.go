// ABOUTME: WebSocket control endpoint for the speaker
// ABOUTME: Runs shell commands from remote clients and pushes status updates
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-speaker/internal/version"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/playback"
)

// DefaultPath is where the control WebSocket is served
const DefaultPath = "/control"

const (
	sendBuffer    = 32
	writeDeadline = 10 * time.Second
	pingPeriod    = 30 * time.Second
)

// Executor runs one command line, writing its reply to w
type Executor interface {
	Execute(ctx context.Context, line string, w io.Writer) error
}

// ServerConfig holds control endpoint configuration
type ServerConfig struct {
	Name string
	Port int
	Path string

	Executor Executor
	Status   func() playback.Status

	Logger zerolog.Logger
}

// Server accepts control connections
type Server struct {
	config   ServerConfig
	serverID string
	log      zerolog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	connsMu sync.RWMutex
	conns   map[string]*conn

	wg sync.WaitGroup
}

// conn is one connected controller
type conn struct {
	id       string
	ws       *websocket.Conn
	sendChan chan Message

	mu     sync.Mutex
	closed bool
}

// enqueue queues msg without blocking and reports false when the queue is full
func (c *conn) enqueue(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.sendChan <- msg:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.sendChan)
	}
}

// NewServer creates a control endpoint
func NewServer(config ServerConfig) (*Server, error) {
	if config.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if config.Status == nil {
		return nil, fmt.Errorf("status source is required")
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.Name == "" {
		config.Name = version.Product
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		log:      config.Logger.With().Str("component", "remote").Logger(),
		upgrader: websocket.Upgrader{
			// controllers live on the local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:   http.NewServeMux(),
		conns: make(map[string]*conn),
	}
	s.mux.HandleFunc(config.Path, s.handleWebSocket)
	return s, nil
}

// Handler returns the HTTP handler serving the control path
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on the configured port until ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", httpServer.Addr).Str("path", s.config.Path).Msg("Control endpoint listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		return fmt.Errorf("control endpoint: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("HTTP server shutdown error")
	}
	s.closeAll()
	s.wg.Wait()
	s.log.Info().Msg("Control endpoint stopped")
	return nil
}

// Connections returns the number of connected controllers
func (s *Server) Connections() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// BroadcastStatus pushes the current engine status to every controller
func (s *Server) BroadcastStatus() {
	msg, err := newMessage(TypeStatus, "", StatusFrom(s.config.Status()))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode status")
		return
	}

	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	for _, c := range s.conns {
		s.send(c, msg)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	c := &conn{
		id:       uuid.New().String(),
		ws:       ws,
		sendChan: make(chan Message, sendBuffer),
	}
	s.log.Info().Str("conn", c.id).Str("remote", r.RemoteAddr).Msg("Controller connected")
	s.handleConnection(r.Context(), c)
}

// handleConnection registers c, greets it, and reads commands until it goes away
func (s *Server) handleConnection(ctx context.Context, c *conn) {
	defer c.ws.Close()

	s.connsMu.Lock()
	s.conns[c.id] = c
	s.connsMu.Unlock()

	defer func() {
		s.connsMu.Lock()
		delete(s.conns, c.id)
		s.connsMu.Unlock()
		c.close()
		s.log.Info().Str("conn", c.id).Msg("Controller disconnected")
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writer(c)
	}()

	hello, _ := newMessage(TypeHello, "", Hello{
		ServerID:     s.serverID,
		ConnectionID: c.id,
		Name:         s.config.Name,
		Product:      version.Product,
		Manufacturer: version.Manufacturer,
		Version:      version.Version,
	})
	s.send(c, hello)
	if status, err := newMessage(TypeStatus, "", StatusFrom(s.config.Status())); err == nil {
		s.send(c, status)
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Str("conn", c.id).Msg("WebSocket error")
			}
			return
		}
		s.handleMessage(ctx, c, data)
	}
}

// writer sends queued messages and keepalive pings
func (s *Server) writer(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, c *conn, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn().Err(err).Str("conn", c.id).Msg("Error unmarshaling message")
		return
	}

	switch msg.Type {
	case TypeCommand:
		var cmd Command
		if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
			s.reply(c, msg.ID, Result{Error: "malformed command"})
			return
		}
		s.runCommand(ctx, c, msg.ID, cmd.Line)
	default:
		s.log.Debug().Str("type", msg.Type).Msg("Unknown message type")
	}
}

// runCommand executes line and replies with its output, then pushes status
func (s *Server) runCommand(ctx context.Context, c *conn, id, line string) {
	s.log.Info().Str("conn", c.id).Str("command", line).Msg("Remote command")

	var out bytes.Buffer
	err := s.config.Executor.Execute(ctx, line, &out)

	result := Result{OK: err == nil, Output: out.String()}
	if err != nil {
		result.Error = err.Error()
		result.Category = playback.CategoryOf(err).String()
	}
	s.reply(c, id, result)
	s.BroadcastStatus()
}

func (s *Server) reply(c *conn, id string, result Result) {
	msg, err := newMessage(TypeResult, id, result)
	if err != nil {
		return
	}
	s.send(c, msg)
}

// send queues msg; slow controllers lose messages
func (s *Server) send(c *conn, msg Message) {
	if !c.enqueue(msg) {
		s.log.Warn().Str("conn", c.id).Str("type", msg.Type).Msg("Controller send buffer full")
	}
}

func (s *Server) closeAll() {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	for _, c := range s.conns {
		c.close()
	}
}
