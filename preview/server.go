package preview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"github.com/opd-ai/camfx/frame"
	"github.com/opd-ai/camfx/media"
	"github.com/opd-ai/camfx/pipeline"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// Selector reads and changes the filter selection.
type Selector interface {
	Current(ctx context.Context) (string, error)
	Set(value string)
}

// StatusFunc returns the body of /status.
type StatusFunc func() any

// Options configures a Server.
type Options struct {
	Addr string
	// MaxWidth bounds the width of broadcast frames. Zero sends full size.
	MaxWidth int
}

// FrameMessage is the CBOR payload of one broadcast frame.
type FrameMessage struct {
	Type   string `cbor:"type"`
	Seq    uint64 `cbor:"seq"`
	Width  int    `cbor:"width"`
	Height int    `cbor:"height"`
	Filter string `cbor:"filter"`
	Pix    []byte `cbor:"pix"`
}

// ControlMessage is a JSON control request or reply.
type ControlMessage struct {
	Type    string   `json:"type"`
	Filter  string   `json:"filter,omitempty"`
	Filters []string `json:"filters,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Server broadcasts frames to websocket clients and accepts filter changes.
type Server struct {
	opts     Options
	selector Selector
	status   StatusFunc
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex
	sent    uint64
}

// New creates a server. status may be nil.
func New(opts Options, selector Selector, status StatusFunc) *Server {
	return &Server{
		opts:     opts,
		selector: selector,
		status:   status,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// Run serves until ctx is done, broadcasting frames from track.
func (s *Server) Run(ctx context.Context, track *media.Track) error {
	httpServer := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		s.closeClients()
	}()
	if track != nil {
		go s.Broadcast(ctx, track)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Server.Run",
		"addr":     s.opts.Addr,
	}).Info("Preview server listening")

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Broadcast sends every frame of track to the connected clients until ctx
// is done or the track ends.
func (s *Server) Broadcast(ctx context.Context, track *media.Track) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-track.Done():
			return
		case buf := <-track.Frames():
			if s.clientCount() == 0 {
				continue
			}
			payload, err := s.encodeFrame(ctx, buf)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Server.Broadcast",
					"error":    err.Error(),
				}).Warn("Failed to encode preview frame")
				continue
			}
			s.writeAll(payload)
		}
	}
}

func (s *Server) encodeFrame(ctx context.Context, buf *frame.Buffer) ([]byte, error) {
	out := Downscale(buf, s.opts.MaxWidth)
	tag, _ := s.selector.Current(ctx)
	return cbor.Marshal(FrameMessage{
		Type:   "frame",
		Seq:    buf.Sequence,
		Width:  out.Width,
		Height: out.Height,
		Filter: tag,
		Pix:    out.Pix,
	})
}

// Downscale returns buf scaled to at most maxWidth, keeping the aspect ratio.
// buf itself is returned when it already fits.
func Downscale(buf *frame.Buffer, maxWidth int) *frame.Buffer {
	if maxWidth <= 0 || buf.Width <= maxWidth {
		return buf
	}
	h := buf.Height * maxWidth / buf.Width
	if h < 1 {
		h = 1
	}
	out := frame.New(maxWidth, h)
	out.Sequence, out.Timestamp = buf.Sequence, buf.Timestamp
	dst, src := out.Image(), buf.Image()
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return out
}

func (s *Server) writeAll(payload []byte) {
	s.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(s.clients))
	for conn, writeMu := range s.clients {
		targets[conn] = writeMu
	}
	s.sent++
	s.mu.Unlock()

	var stale []*websocket.Conn
	for conn, writeMu := range targets {
		if err := writeMessage(conn, writeMu, websocket.BinaryMessage, payload); err != nil {
			stale = append(stale, conn)
		}
	}
	for _, conn := range stale {
		s.removeClient(conn)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Server.handleWS",
			"error":    err.Error(),
		}).Debug("Websocket upgrade failed")
		return
	}
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeMu := &sync.Mutex{}
	s.mu.Lock()
	s.clients[conn] = writeMu
	s.mu.Unlock()

	current, _ := s.selector.Current(r.Context())
	_ = writeJSON(conn, writeMu, ControlMessage{Type: "hello", Filter: current, Filters: filterTags()})

	go s.serveClient(conn, writeMu)
}

func (s *Server) serveClient(conn *websocket.Conn, writeMu *sync.Mutex) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()
	defer close(done)
	defer s.removeClient(conn)

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var req ControlMessage
		if err := json.Unmarshal(payload, &req); err != nil {
			_ = writeJSON(conn, writeMu, ControlMessage{Type: "error", Error: "malformed message"})
			continue
		}
		_ = writeJSON(conn, writeMu, s.control(req))
	}
}

// control answers one control request.
func (s *Server) control(req ControlMessage) ControlMessage {
	ctx := context.Background()
	switch req.Type {
	case "set_filter":
		if _, err := pipeline.ParseMode(req.Filter); err != nil {
			return ControlMessage{Type: "error", Error: err.Error()}
		}
		s.selector.Set(req.Filter)
		logrus.WithFields(logrus.Fields{
			"function": "Server.control",
			"filter":   req.Filter,
		}).Info("Filter selected from preview")
		return ControlMessage{Type: "filter", Filter: req.Filter}
	case "get_filter":
		current, err := s.selector.Current(ctx)
		if err != nil {
			return ControlMessage{Type: "error", Error: err.Error()}
		}
		return ControlMessage{Type: "filter", Filter: current}
	default:
		return ControlMessage{Type: "error", Error: "unknown message type " + req.Type}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	current, _ := s.selector.Current(r.Context())
	s.mu.Lock()
	payload := map[string]any{
		"filter":      current,
		"ws_clients":  len(s.clients),
		"frames_sent": s.sent,
	}
	s.mu.Unlock()
	if s.status != nil {
		payload["metrics"] = s.status()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		s.removeClient(conn)
	}
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func filterTags() []string {
	modes := pipeline.Modes()
	tags := make([]string, len(modes))
	for i, m := range modes {
		tags[i] = m.String()
	}
	return tags
}

func writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, payload any) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(payload)
}

func writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}
