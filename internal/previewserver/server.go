package previewserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lightcut/internal/config"
	"lightcut/internal/logging"
	"lightcut/internal/preview"
)

// frameEvent is pushed to websocket subscribers when a new frame lands.
type frameEvent struct {
	Version uint64 `json:"version"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Server is the byte-serving boundary over the preview store: the UI fetches
// composited RGBA bytes by version over HTTP and learns about new versions
// over a websocket. The server never renders; it only reads the store.
type Server struct {
	bind   string
	store  *preview.Store
	logger *slog.Logger

	upgrader websocket.Upgrader
	listener net.Listener
	server   *http.Server

	mu          sync.Mutex
	subscribers map[*websocket.Conn]chan frameEvent
}

// New builds a server from configuration; returns nil when no bind address is
// configured.
func New(cfg *config.Config, store *preview.Store, logger *slog.Logger) *Server {
	if cfg == nil || store == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.PreviewBind)
	if bind == "" {
		return nil
	}

	s := &Server{
		bind:        bind,
		store:       store,
		logger:      logging.NewComponentLogger(logger, "previewserver"),
		subscribers: make(map[*websocket.Conn]chan frameEvent),
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the route table; exposed so tests can drive the server
// through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/preview/latest", s.handleLatest)
	mux.HandleFunc("/preview/frame", s.handleFrame)
	mux.HandleFunc("/preview/events", s.handleEvents)
	return mux
}

// Start begins serving and shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("previewserver: listen on %s: %w", s.bind, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("preview server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("preview server listening",
		logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down and closes every subscriber.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	for conn, events := range s.subscribers {
		close(events)
		delete(s.subscribers, conn)
	}
	s.mu.Unlock()
}

// Notify pushes a new frame version to every websocket subscriber. A slow
// subscriber skips intermediate versions rather than blocking the render
// path.
func (s *Server) Notify(version uint64, width, height int) {
	if s == nil || version == 0 {
		return
	}
	event := frameEvent{Version: version, Width: width, Height: height}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, events := range s.subscribers {
		select {
		case events <- event:
		default:
		}
	}
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	bytes, width, height, ok := s.store.LatestBytes()
	if !ok {
		http.Error(w, "no frame rendered yet", http.StatusNotFound)
		return
	}
	s.writeFrame(w, s.store.LatestVersion(), width, height, bytes)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	version, err := strconv.ParseUint(r.URL.Query().Get("version"), 10, 64)
	if err != nil || version == 0 {
		http.Error(w, "invalid version", http.StatusBadRequest)
		return
	}
	// Aged-out versions fall back to the latest retained frame.
	bytes, width, height, ok := s.store.FrameBytes(version)
	if !ok {
		http.Error(w, "no frame rendered yet", http.StatusNotFound)
		return
	}
	s.writeFrame(w, version, width, height, bytes)
}

func (s *Server) writeFrame(w http.ResponseWriter, version uint64, width, height int, bytes []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Frame-Version", strconv.FormatUint(version, 10))
	w.Header().Set("X-Frame-Width", strconv.Itoa(width))
	w.Header().Set("X-Frame-Height", strconv.Itoa(height))
	if _, err := w.Write(bytes); err != nil {
		s.logger.Debug("frame write aborted", logging.Error(err))
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}

	events := make(chan frameEvent, 1)
	s.mu.Lock()
	s.subscribers[conn] = events
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if _, ok := s.subscribers[conn]; ok {
			close(events)
			delete(s.subscribers, conn)
		}
		s.mu.Unlock()
		_ = conn.Close()
	}()

	// Reader goroutine detects the peer closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
