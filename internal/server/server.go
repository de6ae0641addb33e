// ABOUTME: Conversion service over WebSocket
// ABOUTME: Accepts sample files on /convert, converts them and returns the encoded result
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sampledeck/sampledeck-go/internal/discovery"
	"github.com/sampledeck/sampledeck-go/internal/library"
	"github.com/sampledeck/sampledeck-go/internal/protocol"
	"github.com/sampledeck/sampledeck-go/internal/version"
)

const (
	// Protocol constants
	ProtocolVersion = 1

	// DefaultMaxFileSize bounds a single uploaded file
	DefaultMaxFileSize = 64 << 20
)

// Config holds server configuration
type Config struct {
	Port        int
	Name        string
	Debug       bool
	UseTUI      bool
	EnableMDNS  bool
	MaxFileSize int64 // bytes per binary message, 0 = DefaultMaxFileSize
}

// Server is the sample conversion service
type Server struct {
	config   Config
	serverID string
	library  *library.Library

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// HTTP server
	httpServer *http.Server
	mux        *http.ServeMux

	// Client management
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// mDNS
	mdnsManager *discovery.Manager

	// TUI
	tui       *ServerTUI
	startTime time.Time

	// Control
	stopChan   chan struct{}
	stopOnce   sync.Once // Ensure Stop() is only called once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client represents a connected client
type Client struct {
	ID   string
	Addr string
	Conn *websocket.Conn

	// State
	State       string // "idle" or "converting"
	Conversions int
	pending     *pendingRequest

	// Output channel for messages
	sendChan chan interface{}

	mu sync.RWMutex
}

// New creates a new server instance that stores conversions in lib
func New(config Config, lib *library.Library) *Server {
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}

	s := &Server{
		config:    config,
		serverID:  uuid.New().String(),
		library:   lib,
		mux:       http.NewServeMux(),
		clients:   make(map[string]*Client),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// The browser host may be served from any origin on the local network
			if origin := r.Header.Get("Origin"); origin != "" && s.config.Debug {
				log.Printf("[DEBUG] Accepting WebSocket from origin: %s", origin)
			}
			return true
		},
	}

	s.mux.HandleFunc("/convert", s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving /convert
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ID returns the server's unique ID
func (s *Server) ID() string {
	return s.serverID
}

// Start runs the server until Stop is called, the TUI quits or the
// listener fails
func (s *Server) Start() error {
	// Start TUI if enabled
	if s.config.UseTUI {
		s.tui = NewServerTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tui.Start(s.config.Name, s.config.Port)
		}()

		// Give TUI time to initialize
		time.Sleep(100 * time.Millisecond)
	}

	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Start mDNS advertisement if enabled
	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        "/convert",
			Debug:       s.config.Debug,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	// Wait for stop signal, TUI quit, or server error
	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	// Mark server as shutting down to reject new connections
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	if s.tui != nil {
		s.tui.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.closeClients()
	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// closeClients closes hijacked connections, which Shutdown does not track
func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)

	s.handleConnection(conn, r.RemoteAddr)
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn, addr string) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	conn.SetReadLimit(s.config.MaxFileSize)

	client := &Client{
		ID:       uuid.New().String(),
		Addr:     addr,
		Conn:     conn,
		State:    "idle",
		sendChan: make(chan interface{}, 16),
	}

	s.clientsMu.Lock()
	s.clients[client.ID] = client
	s.clientsMu.Unlock()
	s.updateTUI()

	writerDone := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(writerDone)
		s.clientWriter(client)
	}()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()

		// Let queued replies drain before the connection closes
		close(client.sendChan)
		<-writerDone

		log.Printf("Client disconnected: %s", client.Addr)
		s.updateTUI()
	}()

	hello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  ProtocolVersion,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	}
	if err := s.sendMessage(client, protocol.TypeServerHello, hello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			s.handleClientMessage(client, data)
		case websocket.BinaryMessage:
			s.handleFile(client, data)
		}
	}
}

// clientWriter sends messages to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			switch v := msg.(type) {
			case []byte:
				client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := client.Conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					log.Printf("Error writing binary message: %v", err)
					return
				}
			default:
				data, err := json.Marshal(v)
				if err != nil {
					log.Printf("Error marshaling message: %v", err)
					continue
				}
				client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Printf("Error writing text message: %v", err)
					return
				}
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes JSON messages from clients
func (s *Server) handleClientMessage(client *Client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		s.sendError(client, protocol.ErrorInvalidRequest, "malformed message")
		return
	}

	switch msg.Type {
	case protocol.TypeConvertRequest:
		s.handleConvertRequest(client, msg.Payload)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
		s.sendError(client, protocol.ErrorInvalidRequest, fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// handleConvertRequest validates a request and holds it for the next
// file. An invalid request is still held so that the file it announces
// gets exactly one error reply.
func (s *Server) handleConvertRequest(client *Client, payload interface{}) {
	var pending *pendingRequest

	var req protocol.ConvertRequest
	reqData, err := json.Marshal(payload)
	if err == nil {
		err = json.Unmarshal(reqData, &req)
	}
	if err != nil {
		pending = &pendingRequest{err: fmt.Errorf("%w: malformed convert/request payload", errInvalidRequest)}
	} else if pending, err = parseRequest(req); err != nil {
		pending = &pendingRequest{name: req.Name, err: err}
	}

	if s.config.Debug {
		if pending.err != nil {
			log.Printf("[DEBUG] Rejected convert request from %s: %v", client.Addr, pending.err)
		} else {
			log.Printf("[DEBUG] Convert request from %s: %s -> %s %s %s",
				client.Addr, pending.name, pending.export.Container,
				pending.export.Encode.Format, pending.export.Encode.Channels)
		}
	}

	client.mu.Lock()
	client.pending = pending
	client.mu.Unlock()
}

// handleFile converts a file announced by the preceding request
func (s *Server) handleFile(client *Client, data []byte) {
	client.mu.Lock()
	pending := client.pending
	client.pending = nil
	if pending != nil && pending.err == nil {
		client.State = "converting"
	}
	client.mu.Unlock()

	if pending == nil {
		s.sendError(client, protocol.ErrorInvalidRequest, "file sent without convert/request")
		return
	}
	if pending.err != nil {
		s.sendError(client, errorKind(pending.err), pending.err.Error())
		return
	}
	s.updateTUI()

	defer func() {
		client.mu.Lock()
		client.State = "idle"
		client.mu.Unlock()
		s.updateTUI()
	}()

	start := time.Now()
	result, encoded, err := s.convert(pending, data)
	if err != nil {
		log.Printf("Conversion of %s failed: %v", pending.name, err)
		s.sendError(client, errorKind(err), err.Error())
		return
	}

	client.mu.Lock()
	client.Conversions++
	client.mu.Unlock()

	log.Printf("Converted %s (%s, %d Hz -> %d Hz, %d frames) in %v",
		result.Name, result.SourceKind, result.NativeRate, result.SampleRate, result.Frames, time.Since(start))

	if err := s.sendMessage(client, protocol.TypeConvertResult, result); err != nil {
		log.Printf("Error sending result: %v", err)
		return
	}
	if err := s.sendBinary(client, encoded); err != nil {
		log.Printf("Error sending file: %v", err)
	}
}

// convert decodes, stores and encodes one file
func (s *Server) convert(req *pendingRequest, data []byte) (protocol.ConvertResult, []byte, error) {
	sample, err := library.Convert(library.File{Name: req.name, Data: data})
	if err != nil {
		return protocol.ConvertResult{}, nil, err
	}

	encoded, ext, err := library.Export(sample, req.export)
	if err != nil {
		return protocol.ConvertResult{}, nil, err
	}

	id := s.library.Add(sample)
	return buildResult(id, sample, req, ext, len(encoded)), encoded, nil
}

// sendError sends a convert/error message
func (s *Server) sendError(client *Client, kind, message string) {
	if err := s.sendMessage(client, protocol.TypeConvertError, protocol.ConvertError{
		Kind:    kind,
		Message: message,
	}); err != nil {
		log.Printf("Error sending error message: %v", err)
	}
}

// sendMessage sends a JSON message to a client
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case client.sendChan <- msg:
		return nil
	default:
		return errors.New("client send buffer full")
	}
}

// sendBinary sends binary data to a client
func (s *Server) sendBinary(client *Client, data []byte) error {
	select {
	case client.sendChan <- data:
		return nil
	default:
		return errors.New("client send buffer full")
	}
}
