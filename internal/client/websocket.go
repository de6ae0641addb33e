// ABOUTME: WebSocket client for the conversion service
// ABOUTME: Handles connection, server hello and request/response exchange
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sampledeck/sampledeck-go/internal/protocol"
)

// Config holds client configuration
type Config struct {
	ServerAddr string        // host:port
	Timeout    time.Duration // per-conversion, 0 = 30s
	Debug      bool
}

// ConvertError is a convert/error reply from the server
type ConvertError struct {
	Kind    string
	Message string
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Client represents a WebSocket client. Conversions on one client are
// serialized.
type Client struct {
	config Config
	conn   *websocket.Conn
	hello  protocol.ServerHello
	mu     sync.Mutex

	connected bool
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{config: config}
}

// Connect establishes the connection and waits for server/hello
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: "/convert"}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.connected = true

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg protocol.Message
	msg.Payload = &c.hello
	if err := conn.ReadJSON(&msg); err != nil {
		c.closeLocked()
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	if msg.Type != protocol.TypeServerHello {
		c.closeLocked()
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	log.Printf("Connected to %s (ID: %s)", c.hello.Name, c.hello.ServerID)
	return nil
}

// Hello returns the server/hello received on Connect
func (c *Client) Hello() protocol.ServerHello {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hello
}

// Convert sends a file and waits for the encoded result. A server-side
// failure is returned as *ConvertError.
func (c *Client) Convert(req protocol.ConvertRequest, data []byte) (*protocol.ConvertResult, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, nil, fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.Timeout))
	if err := c.conn.WriteJSON(protocol.Message{Type: protocol.TypeConvertRequest, Payload: req}); err != nil {
		return nil, nil, fmt.Errorf("failed to send convert/request: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return nil, nil, fmt.Errorf("failed to send file: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.config.Timeout))
	defer c.conn.SetReadDeadline(time.Time{})

	result, err := c.readReply()
	if err != nil {
		return nil, nil, err
	}

	messageType, encoded, err := c.conn.ReadMessage()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read encoded file: %w", err)
	}
	if messageType != websocket.BinaryMessage {
		return nil, nil, fmt.Errorf("expected binary file, got message type %d", messageType)
	}

	if c.config.Debug {
		log.Printf("[DEBUG] Received %s%s (%d bytes)", result.Name, result.Extension, len(encoded))
	}
	return result, encoded, nil
}

// readReply reads the JSON reply to a conversion
func (c *Client) readReply() (*protocol.ConvertResult, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}
	if messageType != websocket.TextMessage {
		return nil, fmt.Errorf("expected JSON reply, got message type %d", messageType)
	}

	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse reply: %w", err)
	}

	switch msg.Type {
	case protocol.TypeConvertResult:
		var result protocol.ConvertResult
		if err := json.Unmarshal(msg.Payload, &result); err != nil {
			return nil, fmt.Errorf("failed to parse convert/result: %w", err)
		}
		return &result, nil
	case protocol.TypeConvertError:
		var convErr protocol.ConvertError
		if err := json.Unmarshal(msg.Payload, &convErr); err != nil {
			return nil, fmt.Errorf("failed to parse convert/error: %w", err)
		}
		return nil, &ConvertError{Kind: convErr.Kind, Message: convErr.Message}
	}
	return nil, fmt.Errorf("unexpected message type: %s", msg.Type)
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.connected {
		c.connected = false
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
