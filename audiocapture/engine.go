package audiocapture

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"go.aimuz.me/meetstream/internal/clock"
	"go.aimuz.me/meetstream/internal/metrics"
	"go.aimuz.me/meetstream/stream"
	"go.aimuz.me/meetstream/wirecodec"
)

// Defaults applied to zero Config fields.
const (
	DefaultBlockSize         = 4096
	DefaultSampleRate        = 16000
	DefaultKeepAliveInterval = 250 * time.Millisecond
)

// Tap receives every block exactly as it was chosen for sending, silence
// included while muted.
type Tap interface {
	WriteBlock(samples []float32) error
}

// Config holds configuration for an Engine.
// Zero values are replaced with sensible defaults.
type Config struct {
	Provider          DeviceProvider
	SampleRate        int
	BlockSize         int
	KeepAliveInterval time.Duration

	// Microphone is the device id mixed in for SelectionBoth.
	// Empty selects the default input.
	Microphone string

	// ClientID is reported in session markers.
	ClientID string

	// ActivityThreshold is the block RMS above which audio counts as
	// speech. ActivityHangover is how long speech outlives the last loud
	// block.
	ActivityThreshold float32
	ActivityHangover  time.Duration

	// OnActivity is called from the capture goroutine when speech starts
	// or stops in the captured audio, muted or not. It must not block.
	OnActivity func(Activity)

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tap     Tap
}

// Engine drives a bound Transport with encoded audio. Before capture starts
// it holds the channel open with keep-alive silence.
type Engine struct {
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	// Precomputed once and reused for every keep-alive and muted block.
	silence      []byte
	silenceBlock []float32

	muted atomic.Bool

	// opMu serializes Start, Stop and End.
	opMu sync.Mutex

	mu         sync.Mutex
	transport  Transport
	open       bool
	pipe       *pipeline
	sources    []Capturer
	mode       Mode
	device     string
	markerSent bool
	keepAlive  clock.Timer
	kaGen      uint64
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if cfg.ActivityThreshold <= 0 {
		cfg.ActivityThreshold = DefaultActivityThreshold
	}
	if cfg.ActivityHangover <= 0 {
		cfg.ActivityHangover = DefaultActivityHangover
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:          cfg,
		log:          logger.With("component", "audiocapture"),
		metrics:      cfg.Metrics,
		silenceBlock: make([]float32, cfg.BlockSize),
	}
	e.silence = encodeFrame(e.silenceBlock)
	return e
}

func encodeFrame(block []float32) []byte {
	// Marshalling a struct of one string field cannot fail.
	data, _ := json.Marshal(stream.AudioFrame{
		Audio: wirecodec.ToTransportText(wirecodec.EncodePCM16(block)),
	})
	return data
}

// Bind attaches the transport frames are sent through.
func (e *Engine) Bind(t Transport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transport = t
}

// TransportOpened starts keep-alive silence unless capture is running.
func (e *Engine) TransportOpened() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.open = true
	if e.pipe == nil {
		e.startKeepAliveLocked()
	}
}

// TransportClosed stops keep-alive silence.
func (e *Engine) TransportClosed() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.open = false
	e.stopKeepAliveLocked()
}

// Start tears down any running capture and starts capturing selection:
// a microphone device id, SelectionMic, SelectionSystem or SelectionBoth. Failures are
// rolled back and wrap ErrCaptureStart.
func (e *Engine) Start(selection string) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.cfg.Provider == nil {
		return fmt.Errorf("%w: %w", ErrCaptureStart, ErrNoProvider)
	}

	e.mu.Lock()
	old := e.teardownLocked()
	e.mu.Unlock()
	stopSources(e.log, old)

	mode := modeOf(selection)
	e.sendMarker(mode)

	p := &pipeline{
		engine: e,
		blocks: newBlocker(e.cfg.BlockSize),
		act:    newActivity(e.cfg.ActivityThreshold, e.cfg.ActivityHangover, e.cfg.Clock),
	}
	if mode == ModeBoth {
		p.aux = newFIFO(2 * e.cfg.BlockSize)
	}

	e.mu.Lock()
	e.pipe = p
	e.mode = mode
	e.device = selection
	e.stopKeepAliveLocked()
	e.mu.Unlock()

	sources, err := e.acquire(selection, p)
	if err != nil {
		p.stopped.Store(true)

		e.mu.Lock()
		if e.pipe == p {
			e.pipe = nil
			e.mode = ModeNone
			e.device = ""
			if e.open {
				e.startKeepAliveLocked()
			}
		}
		e.mu.Unlock()

		e.metrics.CaptureFailed()
		e.log.Error("capture start failed", "selection", selection, "error", err)
		return fmt.Errorf("%w: %w", ErrCaptureStart, err)
	}

	e.mu.Lock()
	e.sources = sources
	e.mu.Unlock()

	e.metrics.CaptureStarted(string(mode))
	e.log.Info("capture started", "mode", mode, "selection", selection, "sources", len(sources))
	return nil
}

// acquire opens and starts the sources for selection. For SelectionBoth the
// system and microphone sources come up concurrently; the system source
// clocks blocks and the microphone is mixed in. On error every source that
// came up is stopped.
func (e *Engine) acquire(selection string, p *pipeline) ([]Capturer, error) {
	prov := e.cfg.Provider

	switch selection {
	case SelectionSystem:
		src, err := prov.System()
		if err != nil {
			return nil, fmt.Errorf("open system source: %w", err)
		}
		if err := src.Start(p.primary); err != nil {
			_ = src.Stop()
			return nil, fmt.Errorf("start %s: %w", src.Name(), err)
		}
		return []Capturer{src}, nil

	case SelectionBoth:
		var sys, mic Capturer
		var g errgroup.Group
		g.Go(func() error {
			src, err := prov.System()
			if err != nil {
				return fmt.Errorf("open system source: %w", err)
			}
			sys = src
			if err := src.Start(p.primary); err != nil {
				return fmt.Errorf("start %s: %w", src.Name(), err)
			}
			return nil
		})
		g.Go(func() error {
			src, err := prov.Microphone(e.cfg.Microphone)
			if err != nil {
				return fmt.Errorf("open microphone: %w", err)
			}
			mic = src
			if err := src.Start(p.secondary); err != nil {
				return fmt.Errorf("start %s: %w", src.Name(), err)
			}
			return nil
		})
		err := g.Wait()

		var acquired []Capturer
		for _, src := range []Capturer{sys, mic} {
			if src != nil {
				acquired = append(acquired, src)
			}
		}
		if err != nil {
			stopSources(e.log, acquired)
			return nil, err
		}
		return acquired, nil

	default:
		id := selection
		if id == SelectionMic {
			id = e.cfg.Microphone
		}
		src, err := prov.Microphone(id)
		if err != nil {
			return nil, fmt.Errorf("open microphone: %w", err)
		}
		if err := src.Start(p.primary); err != nil {
			_ = src.Stop()
			return nil, fmt.Errorf("start %s: %w", src.Name(), err)
		}
		return []Capturer{src}, nil
	}
}

// Stop releases all sources and halts the block cadence. Keep-alive
// resumes if the transport is open. It is safe to call when idle.
func (e *Engine) Stop() {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.stop()
}

func (e *Engine) stop() {
	e.mu.Lock()
	wasRunning := e.pipe != nil
	sources := e.teardownLocked()
	if wasRunning && e.open {
		e.startKeepAliveLocked()
	}
	e.mu.Unlock()

	stopSources(e.log, sources)
	if wasRunning {
		e.log.Info("capture stopped")
	}
}

// End announces the end of the session, closes the transport with a
// normal closure and stops capture.
func (e *Engine) End() {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	t := e.transport
	e.mu.Unlock()

	if t != nil {
		if t.IsOpen() {
			e.sendControl(t, stream.ControlFrame{Type: stream.ControlSessionEnd})
		}
		t.Stop()
	}

	e.mu.Lock()
	e.open = false
	e.stopKeepAliveLocked()
	e.mu.Unlock()

	e.stop()
	e.log.Info("session ended")
}

// SetMuted selects silence for every following block. Devices and cadence
// are left alone.
func (e *Engine) SetMuted(muted bool) {
	if e.muted.Swap(muted) != muted {
		e.log.Info("mute changed", "muted", muted)
	}
}

// ToggleMute flips the mute flag and returns the new value.
func (e *Engine) ToggleMute() bool {
	for {
		old := e.muted.Load()
		if e.muted.CompareAndSwap(old, !old) {
			e.log.Info("mute changed", "muted", !old)
			return !old
		}
	}
}

// Muted reports the mute flag.
func (e *Engine) Muted() bool {
	return e.muted.Load()
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Mode:        e.mode,
		Device:      e.device,
		Muted:       e.muted.Load(),
		Initialized: e.pipe != nil,
		KeepAlive:   e.keepAlive != nil,
		Speaking:    e.pipe != nil && e.pipe.act.Speaking(),
	}
}

// teardownLocked detaches the running pipeline and returns its sources for
// stopping outside the lock.
func (e *Engine) teardownLocked() []Capturer {
	if e.pipe != nil {
		e.pipe.stopped.Store(true)
		e.pipe = nil
	}
	sources := e.sources
	e.sources = nil
	e.mode = ModeNone
	e.device = ""
	return sources
}

func stopSources(log *slog.Logger, sources []Capturer) {
	for _, src := range sources {
		if err := src.Stop(); err != nil {
			log.Warn("stop source", "source", src.Name(), "error", err)
		}
	}
}

func modeOf(selection string) Mode {
	switch selection {
	case SelectionSystem:
		return ModeSystem
	case SelectionBoth:
		return ModeBoth
	}
	return ModeMic
}

// ─────────────────────────────────────────────────────────────────────────────
// Keep-alive
// ─────────────────────────────────────────────────────────────────────────────

func (e *Engine) startKeepAliveLocked() {
	if e.keepAlive != nil {
		return
	}
	e.kaGen++
	e.scheduleKeepAliveLocked(e.kaGen)
}

func (e *Engine) stopKeepAliveLocked() {
	if e.keepAlive == nil {
		return
	}
	e.keepAlive.Stop()
	e.keepAlive = nil
	e.kaGen++
}

func (e *Engine) scheduleKeepAliveLocked(gen uint64) {
	e.keepAlive = e.cfg.Clock.AfterFunc(e.cfg.KeepAliveInterval, func() {
		e.keepAliveTick(gen)
	})
}

func (e *Engine) keepAliveTick(gen uint64) {
	e.mu.Lock()
	if gen != e.kaGen || e.pipe != nil || !e.open {
		e.mu.Unlock()
		return
	}
	t := e.transport
	if t == nil || !t.IsOpen() {
		// Closed without TransportClosed; TransportOpened re-arms.
		e.open = false
		e.keepAlive = nil
		e.kaGen++
		e.mu.Unlock()
		return
	}
	e.scheduleKeepAliveLocked(gen)
	e.mu.Unlock()

	e.send(t, e.silence, metrics.FrameKeepAlive)
}

// ─────────────────────────────────────────────────────────────────────────────
// Outbound frames
// ─────────────────────────────────────────────────────────────────────────────

type sessionMarker struct {
	ClientID   string `json:"clientId,omitempty"`
	Mode       Mode   `json:"mode"`
	SampleRate int    `json:"sampleRate"`
	BlockSize  int    `json:"blockSize"`
}

// sendMarker announces a capture start. The first marker this engine
// actually sends is session_start; all later ones are session_reconnected.
func (e *Engine) sendMarker(mode Mode) {
	e.mu.Lock()
	t := e.transport
	if t == nil || !t.IsOpen() {
		e.mu.Unlock()
		return
	}
	markerType := stream.ControlSessionReconnected
	if !e.markerSent {
		markerType = stream.ControlSessionStart
	}
	e.mu.Unlock()

	sent := e.sendControl(t, stream.ControlFrame{
		Type: markerType,
		Payload: sessionMarker{
			ClientID:   e.cfg.ClientID,
			Mode:       mode,
			SampleRate: e.cfg.SampleRate,
			BlockSize:  e.cfg.BlockSize,
		},
	})
	if sent {
		e.mu.Lock()
		e.markerSent = true
		e.mu.Unlock()
	}
}

func (e *Engine) sendControl(t Transport, frame stream.ControlFrame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		e.log.Error("marshal control frame", "type", frame.Type, "error", err)
		return false
	}
	return e.send(t, data, metrics.FrameControl)
}

// send writes frame if the transport is open and drops it otherwise.
func (e *Engine) send(t Transport, frame []byte, kind string) bool {
	if t == nil || !t.IsOpen() {
		e.metrics.FrameDropped()
		return false
	}
	if err := t.Send(frame); err != nil {
		e.metrics.FrameDropped()
		if !errors.Is(err, stream.ErrNotOpen) {
			e.log.Warn("send frame", "kind", kind, "error", err)
		}
		return false
	}
	e.metrics.FrameSent(kind, len(frame))
	return true
}

// emitBlock picks the live or silence block by the mute flag at this
// moment, taps it and sends it.
func (e *Engine) emitBlock(block []float32) {
	frame, tapped, kind := e.silence, e.silenceBlock, metrics.FrameMuted
	if !e.muted.Load() {
		frame, tapped, kind = encodeFrame(block), block, metrics.FrameLive
	}

	if e.cfg.Tap != nil {
		if err := e.cfg.Tap.WriteBlock(tapped); err != nil {
			e.log.Warn("tap write", "error", err)
		}
	}

	e.mu.Lock()
	t := e.transport
	e.mu.Unlock()
	e.send(t, frame, kind)
}

func (e *Engine) activityChanged(speaking bool) {
	a := Activity{Speaking: speaking, Muted: e.muted.Load()}
	e.log.Debug("voice activity", "speaking", a.Speaking, "muted", a.Muted)
	if e.cfg.OnActivity != nil {
		e.cfg.OnActivity(a)
	}
}

// pipeline is the block path of one capture. It goes inert once stopped so
// late device callbacks do nothing.
type pipeline struct {
	engine  *Engine
	stopped atomic.Bool

	mu     sync.Mutex
	blocks *blocker
	aux    *fifo
	act    *activity
}

// primary receives samples from the clocking source.
func (p *pipeline) primary(samples []float32) {
	if p.stopped.Load() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.blocks.Append(samples, func(block []float32) {
		if p.stopped.Load() {
			return
		}
		if p.aux != nil {
			mixInto(block, p.aux.Take(len(block)))
		}
		if speaking, changed := p.act.Observe(block); changed {
			p.engine.activityChanged(speaking)
		}
		p.engine.emitBlock(block)
	})
}

// secondary receives samples from a source mixed into the primary blocks.
func (p *pipeline) secondary(samples []float32) {
	if p.stopped.Load() || p.aux == nil {
		return
	}
	p.aux.Append(samples)
}
