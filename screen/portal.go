package screen

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	portalDestination = "org.freedesktop.portal.Desktop"
	portalPath        = dbus.ObjectPath("/org/freedesktop/portal/desktop")

	screenCastInterface = "org.freedesktop.portal.ScreenCast"
	createSessionMethod = screenCastInterface + ".CreateSession"
	selectSourcesMethod = screenCastInterface + ".SelectSources"
	startMethod         = screenCastInterface + ".Start"
	openPipeWireMethod  = screenCastInterface + ".OpenPipeWireRemote"

	requestInterface   = "org.freedesktop.portal.Request"
	responseMember     = "Response"
	requestCloseMethod = requestInterface + ".Close"
	sessionCloseMethod = "org.freedesktop.portal.Session.Close"
)

// Source types accepted by SelectSources.
const (
	SourceTypeMonitor uint32 = 1
	SourceTypeWindow  uint32 = 2
)

// Cursor modes accepted by SelectSources.
const (
	CursorModeHidden   uint32 = 1
	CursorModeEmbedded uint32 = 2
)

// Request response codes.
const (
	responseSuccess   uint32 = 0
	responseCancelled uint32 = 1
	responseEnded     uint32 = 2
)

// PortalStream describes one stream granted by the portal.
type PortalStream struct {
	NodeID     uint32
	Position   [2]int32
	Size       [2]int32
	SourceType uint32
}

// StreamOpener turns a PipeWire remote file descriptor and node into frames.
type StreamOpener func(ctx context.Context, fd int, stream PortalStream) (Capture, error)

// portalConn is the subset of *dbus.Conn used by the portal handshake.
type portalConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Names() []string
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	Close() error
}

// PortalProvider acquires screen captures through xdg-desktop-portal.
type PortalProvider struct {
	SourceTypes uint32
	CursorMode  uint32

	opener StreamOpener
	dial   func() (portalConn, error)
}

// NewPortalProvider creates a provider that hands granted streams to opener.
func NewPortalProvider(opener StreamOpener) *PortalProvider {
	return &PortalProvider{
		SourceTypes: SourceTypeMonitor | SourceTypeWindow,
		CursorMode:  CursorModeEmbedded,
		opener:      opener,
		dial: func() (portalConn, error) {
			return dbus.ConnectSessionBus()
		},
	}
}

// Start runs the CreateSession, SelectSources, Start and OpenPipeWireRemote
// handshake. The portal shows its consent dialog during Start.
func (p *PortalProvider) Start(ctx context.Context) (Capture, error) {
	conn, err := p.dial()
	if err != nil {
		return nil, fmt.Errorf("%w: session bus: %v", ErrUnavailable, err)
	}

	s := &portalSession{conn: conn}
	capture, err := p.handshake(ctx, s)
	if err != nil {
		s.close()
		return nil, err
	}
	return capture, nil
}

func (p *PortalProvider) handshake(ctx context.Context, s *portalSession) (Capture, error) {
	results, err := s.request(ctx, createSessionMethod, map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant(newToken()),
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	handle, ok := results["session_handle"]
	if !ok {
		return nil, fmt.Errorf("%w: create session: missing session_handle", ErrUnavailable)
	}
	switch v := handle.Value().(type) {
	case string:
		s.path = dbus.ObjectPath(v)
	case dbus.ObjectPath:
		s.path = v
	default:
		return nil, fmt.Errorf("%w: create session: session_handle has type %T", ErrUnavailable, v)
	}

	if _, err := s.request(ctx, selectSourcesMethod, map[string]dbus.Variant{
		"types":       dbus.MakeVariant(p.SourceTypes),
		"cursor_mode": dbus.MakeVariant(p.CursorMode),
		"multiple":    dbus.MakeVariant(false),
	}, s.path); err != nil {
		return nil, fmt.Errorf("select sources: %w", err)
	}

	results, err = s.request(ctx, startMethod, map[string]dbus.Variant{}, s.path, "")
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	streams := parseStreams(results)
	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: no streams granted", ErrDenied)
	}

	var fd dbus.UnixFD
	call := s.conn.Object(portalDestination, portalPath).CallWithContext(ctx, openPipeWireMethod, 0, s.path, map[string]dbus.Variant{})
	if call.Err != nil {
		return nil, fmt.Errorf("%w: open pipewire remote: %v", ErrUnavailable, call.Err)
	}
	if err := call.Store(&fd); err != nil {
		return nil, fmt.Errorf("%w: open pipewire remote: %v", ErrUnavailable, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "PortalProvider.Start",
		"node_id":  streams[0].NodeID,
		"width":    streams[0].Size[0],
		"height":   streams[0].Size[1],
	}).Info("Screen cast granted")

	capture, err := p.opener(ctx, int(fd), streams[0])
	if err != nil {
		return nil, fmt.Errorf("%w: open stream: %v", ErrUnavailable, err)
	}
	return &portalCapture{Capture: capture, session: s}, nil
}

// portalSession tracks one portal session and its bus connection.
type portalSession struct {
	conn portalConn
	path dbus.ObjectPath
}

// request calls a portal method that answers through a Request object and
// waits for its Response signal. The handle token is added to options.
func (s *portalSession) request(ctx context.Context, method string, options map[string]dbus.Variant, args ...any) (map[string]dbus.Variant, error) {
	token := newToken()
	options["handle_token"] = dbus.MakeVariant(token)
	expected := requestPath(s.conn.Names(), token)

	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(expected),
		dbus.WithMatchInterface(requestInterface),
		dbus.WithMatchMember(responseMember),
	}
	if err := s.conn.AddMatchSignal(match...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = s.conn.RemoveMatchSignal(match...) }()

	signals := make(chan *dbus.Signal, 4)
	s.conn.Signal(signals)
	defer s.conn.RemoveSignal(signals)

	call := s.conn.Object(portalDestination, portalPath).CallWithContext(ctx, method, 0, append(args, options)...)
	if call.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, call.Err)
	}
	var handle dbus.ObjectPath
	if err := call.Store(&handle); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.Object(portalDestination, handle).CallWithContext(context.Background(), requestCloseMethod, 0).Err
			return nil, ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return nil, fmt.Errorf("%w: bus connection closed", ErrUnavailable)
			}
			if sig.Path != handle && sig.Path != expected {
				continue
			}
			if sig.Name != requestInterface+"."+responseMember {
				continue
			}
			return parseResponse(sig.Body)
		}
	}
}

func (s *portalSession) close() {
	if s.path != "" {
		call := s.conn.Object(portalDestination, s.path).CallWithContext(context.Background(), sessionCloseMethod, 0)
		if call.Err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "portalSession.close",
				"error":    call.Err.Error(),
			}).Debug("Closing portal session failed")
		}
	}
	_ = s.conn.Close()
}

// portalCapture closes the portal session when the stream stops.
type portalCapture struct {
	Capture
	session *portalSession
}

func (c *portalCapture) Stop() error {
	err := c.Capture.Stop()
	c.session.close()
	return err
}

func parseResponse(body []any) (map[string]dbus.Variant, error) {
	if len(body) != 2 {
		return nil, fmt.Errorf("%w: response has %d values", ErrUnavailable, len(body))
	}
	status, ok := body[0].(uint32)
	if !ok {
		return nil, fmt.Errorf("%w: response status has type %T", ErrUnavailable, body[0])
	}
	results, _ := body[1].(map[string]dbus.Variant)

	switch status {
	case responseSuccess:
		return results, nil
	case responseCancelled:
		return nil, fmt.Errorf("%w: cancelled by user", ErrDenied)
	case responseEnded:
		return nil, fmt.Errorf("%w: interaction ended", ErrDenied)
	default:
		return nil, fmt.Errorf("%w: response status %d", ErrUnavailable, status)
	}
}

func parseStreams(results map[string]dbus.Variant) []PortalStream {
	v, ok := results["streams"]
	if !ok {
		return nil
	}

	var raw [][]any
	switch rs := v.Value().(type) {
	case [][]any:
		raw = rs
	case []any:
		for _, r := range rs {
			if s, ok := r.([]any); ok {
				raw = append(raw, s)
			}
		}
	}

	streams := make([]PortalStream, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		var stream PortalStream
		stream.NodeID, _ = entry[0].(uint32)
		if props, ok := entry[1].(map[string]dbus.Variant); ok {
			if pos, ok := props["position"]; ok {
				stream.Position, _ = parseInt32Pair(pos.Value())
			}
			if size, ok := props["size"]; ok {
				stream.Size, _ = parseInt32Pair(size.Value())
			}
			if st, ok := props["source_type"]; ok {
				stream.SourceType, _ = st.Value().(uint32)
			}
		}
		streams = append(streams, stream)
	}
	return streams
}

func parseInt32Pair(value any) ([2]int32, bool) {
	values, ok := value.([]any)
	if !ok || len(values) < 2 {
		return [2]int32{}, false
	}
	left, lok := values[0].(int32)
	right, rok := values[1].(int32)
	if !lok || !rok {
		return [2]int32{}, false
	}
	return [2]int32{left, right}, true
}

// newToken returns a handle token that is a valid object path element.
func newToken() string {
	return "camfx_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// requestPath predicts the Request object path for a handle token.
func requestPath(names []string, token string) dbus.ObjectPath {
	sender := ""
	if len(names) > 0 {
		sender = strings.ReplaceAll(strings.TrimPrefix(names[0], ":"), ".", "_")
	}
	return dbus.ObjectPath("/org/freedesktop/portal/desktop/request/" + sender + "/" + token)
}
