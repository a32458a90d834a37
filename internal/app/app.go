// Package app wires the streaming session, transcript ledger, capture
// engine and scroll follower into one service for a presentation layer.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.aimuz.me/meetstream/audiocapture"
	"go.aimuz.me/meetstream/cache"
	"go.aimuz.me/meetstream/config"
	"go.aimuz.me/meetstream/follow"
	"go.aimuz.me/meetstream/hotkey"
	"go.aimuz.me/meetstream/internal/clock"
	"go.aimuz.me/meetstream/internal/metrics"
	"go.aimuz.me/meetstream/internal/types"
	"go.aimuz.me/meetstream/langdetect"
	"go.aimuz.me/meetstream/stream"
	"go.aimuz.me/meetstream/transcript"
)

var (
	// ErrNotDownloadable is returned by DownloadTranscript outside the
	// download window.
	ErrNotDownloadable = errors.New("app: transcript not downloadable")

	// ErrNoSession is returned when no viewer session is running.
	ErrNoSession = errors.New("app: no viewer session")

	// ErrNoArchive is returned when the archive could not be opened.
	ErrNoArchive = errors.New("app: archive unavailable")
)

// maxArtifactSize bounds a downloaded transcript.
const maxArtifactSize = 32 << 20

// Options configures a Service.
type Options struct {
	Version  string
	Config   *config.Config
	Metrics  *metrics.Metrics
	Emit     Emitter
	Notifier Notifier
	Provider audiocapture.DeviceProvider
	Cache    *cache.Cache
	Detector stream.LanguageDetector
	Clock    clock.Clock
	HTTP     *http.Client
	Logger   *slog.Logger
}

// Service is the application core. Presentation layers call its methods
// and receive events through Options.Emit.
type Service struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	emitFn   Emitter
	notifier Notifier
	provider audiocapture.DeviceProvider
	cache    *cache.Cache
	detector stream.LanguageDetector
	clock    clock.Clock
	http     *http.Client
	log      *slog.Logger
	version  string

	hotkey   *hotkey.Manager
	follower *follow.Follower

	live  LiveAdapter
	audio AudioAdapter

	// Latest viewer snapshot, kept for archiving from session hooks.
	snapMu   sync.Mutex
	snapshot []transcript.Entry
}

// New creates a Service. Call Init to start optional subsystems.
func New(opts Options) *Service {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	client := opts.HTTP
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	s := &Service{
		cfg:      cfg,
		metrics:  opts.Metrics,
		emitFn:   opts.Emit,
		notifier: notifier,
		provider: opts.Provider,
		cache:    opts.Cache,
		detector: opts.Detector,
		clock:    clk,
		http:     client,
		log:      logger,
		version:  opts.Version,
	}
	s.follower = follow.New(follow.Config{
		Clock:    clk,
		OnNotice: func(n follow.Notice) { s.emit(EventFollowNotice, n) },
	})
	return s
}

// Init opens the archive, the language detector and the mute hotkey as
// configured. Failures are logged; the service works without them.
func (s *Service) Init() {
	if s.cache == nil {
		s.setupCache()
	}
	if s.detector == nil && s.cfg.LangDetect.Enabled {
		s.setupDetector()
	}
	if s.cfg.Hotkey.Enabled && s.cfg.Hotkey.Mute != "" {
		s.setupHotkey()
	}
	s.log.Info("service initialized", "version", s.version)
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.hotkey != nil {
		s.hotkey.Stop()
	}
	s.follower.Close()
	s.archive()
	_ = s.live.Stop()
	s.audio.Close()
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.Error("close cache", "error", err)
		}
	}
}

func (s *Service) setupCache() {
	dir, err := config.Dir()
	if err != nil {
		s.log.Error("get config dir for cache", "error", err)
		return
	}

	cachePath := filepath.Join(dir, "cache")
	c, err := cache.New(cachePath)
	if err != nil {
		s.log.Error("init cache", "error", err)
		return
	}
	s.cache = c
	s.log.Info("cache initialized", "path", cachePath)
}

func (s *Service) setupDetector() {
	d, err := langdetect.New(langdetect.Config{Languages: s.cfg.LangDetect.Languages})
	if err != nil {
		s.log.Error("init language detector", "error", err)
		return
	}
	s.detector = d
}

func (s *Service) setupHotkey() {
	combo, err := hotkey.ParseCombo(s.cfg.Hotkey.Mute)
	if err != nil {
		s.log.Error("parse mute hotkey", "error", err)
		return
	}

	s.hotkey = hotkey.NewManager(combo, func() {
		muted, err := s.ToggleMute()
		if err != nil {
			return
		}
		s.log.Info("mute toggled by hotkey", "muted", muted)
	}, s.log)

	if err := s.hotkey.Start(); err != nil {
		s.log.Error("start hotkey", "error", err)
		s.hotkey = nil
	}
}

// emit is a safe wrapper around the emitter.
func (s *Service) emit(name string, data any) {
	if s.emitFn != nil {
		s.emitFn(name, data)
	}
}

func (s *Service) target(role stream.Role, sessionID, token string) stream.Target {
	return stream.Target{
		Scheme:        s.cfg.Server.Scheme,
		Host:          s.cfg.Server.Host,
		Role:          role,
		IntegrationID: s.cfg.Server.IntegrationID,
		SessionID:     sessionID,
		Token:         token,
		Language:      s.cfg.Language.Target,
	}
}

func (s *Service) streamConfig(hooks stream.Hooks) stream.Config {
	return stream.Config{
		Clock:          s.clock,
		ReconnectDelay: s.cfg.ReconnectDelay(),
		DownloadTTL:    s.cfg.DownloadTTL(),
		Hooks:          hooks,
		Logger:         s.log,
		Metrics:        s.metrics,
		Detector:       s.detector,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Viewer
// ─────────────────────────────────────────────────────────────────────────────

// StartViewer connects to the transcript stream of a session.
func (s *Service) StartViewer(sessionID, token string) error {
	target := s.target(stream.RoleViewer, sessionID, token)

	s.snapMu.Lock()
	s.snapshot = nil
	s.snapMu.Unlock()

	hooks := stream.Hooks{
		OnState: func(st stream.State) {
			s.emit(EventLiveState, st)
		},
		OnTranscript: func(entries []transcript.Entry) {
			s.snapMu.Lock()
			s.snapshot = entries
			s.snapMu.Unlock()
			s.emit(EventTranscript, entries)
		},
		OnDownload: func(d stream.DownloadStatus) {
			if d.Downloadable {
				s.archiveTarget(target)
				_ = s.notifier.Notify("Transcript ready",
					fmt.Sprintf("Session %s ended. Download available until %s.", sessionID, d.ExpiresAt.Format(time.Kitchen)))
			}
			s.emit(EventDownload, d)
		},
	}

	if err := s.live.Start(target, s.streamConfig(hooks)); err != nil {
		return fmt.Errorf("start viewer: %w", err)
	}
	s.log.Info("viewer started", "session", sessionID)
	return nil
}

// StopViewer archives the transcript and closes the viewer connection.
func (s *Service) StopViewer() error {
	s.archive()
	return s.live.Stop()
}

// GetLiveStatus returns the viewer status.
func (s *Service) GetLiveStatus() types.LiveStatus {
	return s.live.Status()
}

// Transcript returns the current viewer transcript.
func (s *Service) Transcript() []transcript.Entry {
	sess := s.live.Session()
	if sess == nil {
		return nil
	}
	return sess.Entries()
}

// DownloadTranscript fetches the final transcript while the download
// window is open and stores it in the archive.
func (s *Service) DownloadTranscript(ctx context.Context) (*types.Artifact, error) {
	sess := s.live.Session()
	if sess == nil {
		return nil, ErrNoSession
	}
	if !sess.Download().Downloadable {
		return nil, ErrNotDownloadable
	}
	target := sess.Target()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.ArtifactURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download transcript: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize))
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	art := &types.Artifact{
		SessionID:   target.SessionID,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
		FetchedAt:   s.clock.Now(),
	}

	if s.cache != nil {
		err := s.cache.PutArtifact(&cache.Entry{
			IntegrationID: target.IntegrationID,
			SessionID:     target.SessionID,
			Artifact:      data,
			ContentType:   art.ContentType,
			CreatedAt:     art.FetchedAt,
		}, cache.DefaultTTL)
		if err != nil {
			s.log.Warn("cache artifact", "error", err)
		}
	}

	s.log.Info("transcript downloaded", "session", target.SessionID, "bytes", len(data))
	return art, nil
}

// CachedArtifact returns a previously downloaded transcript.
func (s *Service) CachedArtifact(sessionID string) (*types.Artifact, bool) {
	if s.cache == nil {
		return nil, false
	}
	e, ok := s.cache.Artifact(s.cfg.Server.IntegrationID, sessionID)
	if !ok {
		return nil, false
	}
	return &types.Artifact{
		SessionID:   e.SessionID,
		ContentType: e.ContentType,
		Data:        e.Artifact,
		FetchedAt:   e.CreatedAt,
		Cached:      true,
	}, true
}

// ArchivedTranscript returns the last transcript snapshot saved for a session.
func (s *Service) ArchivedTranscript(sessionID string) ([]transcript.Entry, bool) {
	if s.cache == nil {
		return nil, false
	}
	e, ok := s.cache.Transcript(s.cfg.Server.IntegrationID, sessionID)
	if !ok {
		return nil, false
	}
	return e.Entries, true
}

// ArchivedSessions lists every archived transcript, newest first.
func (s *Service) ArchivedSessions() ([]*cache.Entry, error) {
	if s.cache == nil {
		return nil, ErrNoArchive
	}
	entries, err := s.cache.Transcripts()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b *cache.Entry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return entries, nil
}

// DeleteArchive removes the archived transcript and artifact of a session.
func (s *Service) DeleteArchive(sessionID string) error {
	if s.cache == nil {
		return ErrNoArchive
	}
	if err := s.cache.Delete(s.cfg.Server.IntegrationID, sessionID); err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	return nil
}

func (s *Service) archive() {
	sess := s.live.Session()
	if sess == nil {
		return
	}
	s.archiveTarget(sess.Target())
}

func (s *Service) archiveTarget(t stream.Target) {
	if s.cache == nil {
		return
	}
	s.snapMu.Lock()
	entries := s.snapshot
	s.snapMu.Unlock()
	if len(entries) == 0 {
		return
	}

	err := s.cache.PutTranscript(&cache.Entry{
		IntegrationID: t.IntegrationID,
		SessionID:     t.SessionID,
		Entries:       entries,
		CreatedAt:     s.clock.Now(),
	}, cache.DefaultTTL)
	if err != nil {
		s.log.Warn("archive transcript", "error", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Scroll following
// ─────────────────────────────────────────────────────────────────────────────

// Follower returns the scroll follower for the transcript view.
func (s *Service) Follower() *follow.Follower {
	return s.follower
}

// ─────────────────────────────────────────────────────────────────────────────
// Host & Audio Capture
// ─────────────────────────────────────────────────────────────────────────────

// StartHost opens the audio connection for a session. Keep-alive silence
// flows as soon as it connects; capture starts with StartCapture.
func (s *Service) StartHost(sessionID, token string) error {
	target := s.target(stream.RoleHost, sessionID, token)

	hooks := stream.Hooks{
		OnState: func(st stream.State) {
			s.emit(EventHostState, st)
		},
	}
	ecfg := audiocapture.Config{
		Provider:   s.provider,
		SampleRate: s.cfg.Audio.SampleRate,
		Microphone: s.cfg.Audio.Microphone,
		ClientID:   s.cfg.ClientID,
		Clock:      s.clock,
		Logger:     s.log,
		Metrics:    s.metrics,
		OnActivity: s.onActivity,
	}

	if err := s.audio.Connect(target, s.streamConfig(hooks), ecfg, s.cfg.Audio.RecordPath); err != nil {
		return fmt.Errorf("start host: %w", err)
	}
	s.log.Info("host started", "session", sessionID)
	return nil
}

// onActivity runs on the capture goroutine, so the alert is raised
// asynchronously.
func (s *Service) onActivity(a audiocapture.Activity) {
	s.emit(EventActivity, a)
	if a.Speaking && a.Muted {
		go func() {
			_ = s.notifier.Notify("You are muted", "Unmute to be heard in the meeting.")
		}()
	}
}

// StartCapture starts capturing selection. An empty selection uses the
// configured source.
func (s *Service) StartCapture(selection string) error {
	if selection == "" {
		selection = s.cfg.Audio.Source
	}
	if err := s.audio.Start(selection); err != nil {
		if errors.Is(err, audiocapture.ErrCaptureStart) {
			s.emit(EventCaptureError, types.CaptureError{Selection: selection, Message: err.Error()})
			_ = s.notifier.Notify("Audio capture failed", err.Error())
		}
		return err
	}
	s.emit(EventCaptureStatus, s.audio.Status())
	return nil
}

// StopCapture stops capture and keeps the connection alive.
func (s *Service) StopCapture() {
	s.audio.Stop()
	s.emit(EventCaptureStatus, s.audio.Status())
}

// ToggleMute flips mute and returns the new state.
func (s *Service) ToggleMute() (bool, error) {
	muted, err := s.audio.ToggleMute()
	if err != nil {
		return false, err
	}
	s.emit(EventCaptureStatus, s.audio.Status())
	return muted, nil
}

// SetMuted sets mute.
func (s *Service) SetMuted(muted bool) error {
	if err := s.audio.SetMuted(muted); err != nil {
		return err
	}
	s.emit(EventCaptureStatus, s.audio.Status())
	return nil
}

// EndSession tells the service the meeting is over and disconnects for good.
func (s *Service) EndSession() error {
	return s.audio.End()
}

// GetCaptureStatus returns the capture status.
func (s *Service) GetCaptureStatus() types.CaptureStatus {
	return s.audio.Status()
}

// Devices lists input devices.
func (s *Service) Devices() ([]audiocapture.Device, error) {
	if s.provider == nil {
		return nil, audiocapture.ErrNoProvider
	}
	return s.provider.Devices()
}

// DetectLanguage detects the language of the given text.
func (s *Service) DetectLanguage(text string) types.DetectResult {
	if s.detector == nil {
		return types.DetectResult{Code: "auto", Name: "Auto"}
	}
	code, ok := s.detector.Detect(text)
	if !ok {
		return types.DetectResult{Code: "auto", Name: "Auto"}
	}
	return types.DetectResult{Code: code, Name: langdetect.Name(code)}
}
