// Package stream maintains the long-lived WebSocket connection to a meeting
// session endpoint: dialing and redialing, dispatching inbound events into
// the transcript ledger, lifecycle tracking and the download window.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go.aimuz.me/meetstream/internal/clock"
	"go.aimuz.me/meetstream/internal/metrics"
	"go.aimuz.me/meetstream/transcript"
)

// ErrNotOpen is returned by Send when the transport is not open.
// The frame is dropped.
var ErrNotOpen = errors.New("stream: transport not open")

// State is the session lifecycle as observed by the client.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateWaiting      State = "waiting"
	StateEnded        State = "ended"
)

var allStates = []string{
	string(StateConnecting),
	string(StateConnected),
	string(StateDisconnected),
	string(StateWaiting),
	string(StateEnded),
}

// DownloadStatus reports whether the final transcript can be fetched.
// ExpiresAt is zero until a session end has been observed.
type DownloadStatus struct {
	Downloadable bool      `json:"isDownloadable"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Defaults applied to zero Config fields.
const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultDownloadTTL    = 10 * time.Minute
	DefaultWriteTimeout   = 5 * time.Second
	DefaultDialTimeout    = 10 * time.Second
)

// Hooks receive session notifications. They run outside the session lock
// and may call back into the Session.
type Hooks struct {
	OnState      func(State)
	OnTranscript func([]transcript.Entry)
	OnDownload   func(DownloadStatus)
	// OnOpen fires after every successful (re)connect.
	OnOpen func()
}

// LanguageDetector guesses the language tag of a text.
type LanguageDetector interface {
	Detect(text string) (tag string, ok bool)
}

// Config holds configuration for a Session.
// Zero values are replaced with sensible defaults.
type Config struct {
	Dialer         *websocket.Dialer
	Clock          clock.Clock
	ReconnectDelay time.Duration
	DownloadTTL    time.Duration
	WriteTimeout   time.Duration
	DialTimeout    time.Duration
	Hooks          Hooks
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Detector       LanguageDetector
}

// Session owns one streaming connection, its transcript ledger and its
// download window.
type Session struct {
	target  Target
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	gen       uint64 // bumped on every dial and on Stop; stale callbacks compare against it
	stopped   bool
	cancel    context.CancelFunc
	reconnect clock.Timer
	ledger    *transcript.Ledger
	window    downloadWindow

	writeMu sync.Mutex
}

type downloadWindow struct {
	armed  bool
	status DownloadStatus
	timer  clock.Timer
}

// notification collects hook calls produced under the lock. A non-zero
// gen ties it to one connection: hooks are skipped once that connection
// is superseded or the session is stopped.
type notification struct {
	gen      uint64
	state    *State
	entries  []transcript.Entry
	ledger   bool
	download *DownloadStatus
	opened   bool
}

// Connect creates a Session and starts dialing target. An invalid target
// leaves the session disconnected without any connection attempt.
func Connect(target Target, cfg Config) *Session {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.DownloadTTL <= 0 {
		cfg.DownloadTTL = DefaultDownloadTTL
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		target:  target,
		cfg:     cfg,
		log:     logger.With("component", "stream", "role", string(target.Role), "session", target.SessionID),
		metrics: cfg.Metrics,
		state:   StateDisconnected,
		ledger:  transcript.NewLedger(),
	}

	if err := target.Validate(); err != nil {
		s.log.Warn("not connecting", "error", err)
		s.metrics.State(string(target.Role), string(StateDisconnected), allStates)
		return s
	}

	s.dial()
	return s
}

// Target returns the descriptor the session was created with.
func (s *Session) Target() Target {
	return s.target
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Entries returns the current transcript in first-seen order.
func (s *Session) Entries() []transcript.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Entries()
}

// Download returns the current download window.
func (s *Session) Download() DownloadStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.status
}

// IsOpen reports whether the transport is currently open.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send writes frame as a text message. When the transport is not open the
// frame is dropped and ErrNotOpen is returned; nothing is queued.
func (s *Session) Send(frame []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrNotOpen
	}

	s.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	err := conn.WriteMessage(websocket.TextMessage, frame)
	s.writeMu.Unlock()

	if err != nil {
		// Closing makes the read loop fail, which schedules the reconnect.
		_ = conn.Close()
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// SendJSON marshals v and sends it.
func (s *Session) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return s.Send(data)
}

// Stop closes the connection with a normal-closure code, cancels the
// reconnect and download timers and suppresses any further reconnect.
// It is safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.gen++

	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	if s.window.timer != nil {
		s.window.timer.Stop()
		s.window.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	conn := s.conn
	s.conn = nil
	var n notification
	s.setStateLocked(StateDisconnected, &n)
	s.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}

	s.log.Info("session stopped")
	s.deliver(n)
}

func (s *Session) dial() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
	s.cancel = cancel
	s.reconnect = nil

	n := notification{gen: gen}
	s.setStateLocked(StateConnecting, &n)
	s.mu.Unlock()

	s.deliver(n)
	go s.run(ctx, cancel, gen)
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	s.log.Debug("dialing", "url", s.target.Redacted())

	conn, _, err := s.cfg.Dialer.DialContext(ctx, s.target.URL(), nil)
	cancel()
	if err != nil {
		s.metrics.Dial(string(s.target.Role), false)
		s.log.Warn("dial failed", "error", err)
		s.lost(gen, nil)
		return
	}
	s.metrics.Dial(string(s.target.Role), true)

	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.cancel = nil
	s.conn = conn

	// A fresh connection starts a fresh view; the server re-sends history.
	n := notification{gen: gen}
	s.ledger.Clear()
	n.ledger, n.entries = true, s.ledger.Entries()
	if s.window.timer != nil {
		s.window.timer.Stop()
	}
	s.window = downloadWindow{}
	n.download = &DownloadStatus{}
	s.setStateLocked(StateConnected, &n)
	n.opened = true
	s.mu.Unlock()

	s.metrics.LedgerSize(0)
	s.log.Info("connected")
	s.deliver(n)

	s.readLoop(conn, gen)
}

func (s *Session) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("connection closed by remote", "error", err)
			} else {
				s.log.Warn("connection lost", "error", err)
			}
			_ = conn.Close()
			s.lost(gen, conn)
			return
		}
		s.handle(gen, data)
	}
}

// lost handles a connection that ended without Stop and arms the reconnect.
func (s *Session) lost(gen uint64, conn *websocket.Conn) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	if conn == nil || s.conn == conn {
		s.conn = nil
	}
	s.cancel = nil

	n := notification{gen: gen}
	s.setStateLocked(StateDisconnected, &n)
	s.reconnect = s.cfg.Clock.AfterFunc(s.cfg.ReconnectDelay, func() {
		s.mu.Lock()
		current := !s.stopped && gen == s.gen
		s.mu.Unlock()
		if current {
			s.dial()
		}
	})
	s.mu.Unlock()

	s.metrics.ReconnectScheduled()
	s.log.Info("reconnect scheduled", "delay", s.cfg.ReconnectDelay)
	s.deliver(n)
}

func (s *Session) handle(gen uint64, data []byte) {
	event, err := ParseEvent(data)
	if err != nil {
		s.metrics.Dropped("malformed")
		s.log.Warn("failed to parse event", "error", err)
		return
	}

	n := notification{gen: gen}

	switch e := event.(type) {
	case ControlEvent:
		s.metrics.Message(e.Type)
		s.mu.Lock()
		if s.stopped || gen != s.gen {
			s.mu.Unlock()
			return
		}
		switch e.Type {
		case EventSessionEnd:
			s.armWindowLocked(gen, &n)
			s.setStateLocked(StateEnded, &n)
		case EventWaiting:
			s.setStateLocked(StateWaiting, &n)
		case EventLive:
			s.setStateLocked(StateConnected, &n)
		}
		s.mu.Unlock()

	case TranscriptEvent:
		if e.ID == "" {
			s.metrics.Dropped("missing_id")
			s.log.Debug("dropping transcript event without id", "type", e.Type)
			return
		}
		s.metrics.Message(e.Type)
		msg := s.detectLanguage(e.Message)

		s.mu.Lock()
		if s.stopped || gen != s.gen {
			s.mu.Unlock()
			return
		}
		n.ledger, n.entries = true, s.ledger.Upsert(msg)
		s.mu.Unlock()
		s.metrics.LedgerSize(len(n.entries))

	case UnknownEvent:
		s.metrics.Dropped("unknown_type")
		s.log.Debug("dropping unknown event", "type", e.Type)
		return
	}

	s.deliver(n)
}

func (s *Session) detectLanguage(msg transcript.Message) transcript.Message {
	if s.cfg.Detector == nil || msg.SourceLanguage != "" || msg.SourceText == "" {
		return msg
	}
	if tag, ok := s.cfg.Detector.Detect(msg.SourceText); ok {
		msg.SourceLanguage = tag
	}
	return msg
}

// armWindowLocked opens the download window once per connection. Later
// session ends, including after expiry, leave it alone.
func (s *Session) armWindowLocked(gen uint64, n *notification) {
	if s.window.armed {
		return
	}
	ttl := s.cfg.DownloadTTL
	s.window.armed = true
	s.window.status = DownloadStatus{
		Downloadable: true,
		ExpiresAt:    s.cfg.Clock.Now().Add(ttl),
	}
	s.window.timer = s.cfg.Clock.AfterFunc(ttl, func() { s.expireWindow(gen) })

	status := s.window.status
	n.download = &status
	s.metrics.DownloadArmed()
	s.log.Info("download window armed", "expires_at", status.ExpiresAt)
}

func (s *Session) expireWindow(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen || !s.window.armed {
		s.mu.Unlock()
		return
	}
	s.window.timer = nil
	s.window.status.Downloadable = false
	status := s.window.status
	s.mu.Unlock()

	s.log.Info("download window expired")
	s.deliver(notification{gen: gen, download: &status})
}

func (s *Session) setStateLocked(st State, n *notification) {
	if s.state == st {
		return
	}
	s.state = st
	n.state = &st
	s.metrics.State(string(s.target.Role), string(st), allStates)
}

// current reports whether hooks for gen may still run. Zero is used by
// Stop for its own final notification.
func (s *Session) current(gen uint64) bool {
	if gen == 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && gen == s.gen
}

// deliver runs the hooks of n. The session is re-checked before each hook
// since a hook may block while Stop runs.
func (s *Session) deliver(n notification) {
	h := s.cfg.Hooks
	if n.state != nil && h.OnState != nil && s.current(n.gen) {
		h.OnState(*n.state)
	}
	if n.ledger && h.OnTranscript != nil && s.current(n.gen) {
		h.OnTranscript(n.entries)
	}
	if n.download != nil && h.OnDownload != nil && s.current(n.gen) {
		h.OnDownload(*n.download)
	}
	if n.opened && h.OnOpen != nil && s.current(n.gen) {
		h.OnOpen()
	}
}
