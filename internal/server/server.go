// ABOUTME: Main server implementation for the shared soundboard
// ABOUTME: Manages WebSocket sessions, toggle requests, and lifecycle
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
	"github.com/pheineke/soundboard/internal/audio"
	"github.com/pheineke/soundboard/internal/discovery"
	"github.com/pheineke/soundboard/internal/hub"
	"github.com/pheineke/soundboard/internal/ingest"
	"github.com/pheineke/soundboard/internal/playback"
	"github.com/pheineke/soundboard/internal/protocol"
	"github.com/pheineke/soundboard/internal/registry"
)

// Config holds server configuration.
type Config struct {
	Port       int
	Name       string
	UploadDir  string
	EnableMDNS bool
	UseTUI     bool
	Debug      bool

	// MaxUploadBytes caps upload request bodies. Zero means the
	// default of 32MB.
	MaxUploadBytes int64
}

const defaultMaxUploadBytes = 32 << 20

// Server is the soundboard server.
type Server struct {
	config   Config
	serverID string

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	hub    *hub.Hub
	sounds *registry.Registry
	engine *playback.Engine
	ingest *ingest.Ingest

	mdnsManager *discovery.Manager

	tui       *StatusTUI
	startTime time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New wires a server over the given registry, channel pool, and hub.
// decode validates uploads; pass audio.DecodeFile outside tests.
func New(config Config, sounds *registry.Registry, pool *playback.Pool, h *hub.Hub, decode registry.DecodeFunc) *Server {
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// The board is meant for trusted local networks; any
			// origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub:       h,
		sounds:    sounds,
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}

	s.engine = playback.NewEngine(sounds, pool, stateBroadcaster{hub: h})
	s.ingest = ingest.New(config.UploadDir, sounds, decode, soundNotifier{hub: h})
	s.routes()
	return s
}

// Handler exposes the HTTP mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the server until Stop is called, the TUI quits, or the
// listener fails.
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewStatusTUI(s.config.Name, s.config.Port, s.status)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tui.Start()
		}()

		// Give the TUI time to take over the terminal.
		time.Sleep(100 * time.Millisecond)
	}

	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	count, err := s.ingest.ScanDir()
	if err != nil {
		return fmt.Errorf("failed to scan upload dir: %w", err)
	}
	log.Printf("Registered %d sounds from %s", count, s.config.UploadDir)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Soundboard listening on %s", addr)

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

	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	if s.tui != nil {
		s.tui.Stop()
	}

	s.engine.StopAll()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// status snapshots server state for the TUI.
func (s *Server) status() Status {
	return Status{
		Sessions: s.hub.Count(),
		Sounds:   len(s.sounds.List()),
		Playing:  s.engine.Playing(),
	}
}

// handleWebSocket upgrades the connection and serves toggle requests
// until the client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	sess := s.hub.Add(conn)
	defer s.hub.Remove(sess)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error on session %s: %v", sess.ID, err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid message from session %s: %v", sess.ID, err)
			sess.Send(protocol.Error("invalid message format"))
			continue
		}

		switch msg.Action {
		case protocol.ActionToggleSound:
			s.handleToggle(sess, msg.ID)
		default:
			log.Printf("Unknown action %q from session %s", msg.Action, sess.ID)
		}
	}
}

// handleToggle runs one toggle and reports failures to the requester
// only. Successful transitions are broadcast by the engine itself.
func (s *Server) handleToggle(sess *hub.Session, soundID string) {
	if soundID == "" {
		sess.Send(protocol.Error("missing sound id"))
		return
	}

	state, err := s.engine.Toggle(soundID)
	if err != nil {
		log.Printf("Toggle %s failed: %v", soundID, err)
		sess.Send(protocol.Error(toggleErrorMessage(err)))
		return
	}

	if s.config.Debug {
		log.Printf("[DEBUG] Session %s toggled %s to %s", sess.ID, soundID, state)
	}
}

// toggleErrorMessage maps internal errors to client-facing text.
func toggleErrorMessage(err error) string {
	var decErr *audio.DecodeError
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return "sound not found"
	case errors.Is(err, playback.ErrNoFreeChannel):
		return "all playback channels are busy"
	case errors.As(err, &decErr):
		return "failed to decode sound"
	default:
		return "failed to toggle sound"
	}
}
