package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.aimuz.me/meetstream/audiocapture"
	"go.aimuz.me/meetstream/internal/types"
	"go.aimuz.me/meetstream/stream"
)

// ErrNotConnected is returned for capture operations without a host session.
var ErrNotConnected = errors.New("app: host session not connected")

// AudioAdapter owns the host connection and the capture engine bound to it.
type AudioAdapter struct {
	mu       sync.Mutex
	session  *stream.Session
	engine   *audiocapture.Engine
	recorder *audiocapture.Recorder
	record   string
}

// Connect opens the host connection and binds a fresh engine to it. Stops
// any existing connection first. A non-empty recordPath taps every sent
// block into a WAV file.
func (aa *AudioAdapter) Connect(target stream.Target, scfg stream.Config, ecfg audiocapture.Config, recordPath string) error {
	if err := target.Validate(); err != nil {
		return err
	}

	aa.mu.Lock()
	defer aa.mu.Unlock()

	aa.closeLocked()

	var rec *audiocapture.Recorder
	if recordPath != "" {
		r, err := audiocapture.NewRecorder(recordPath, ecfg.SampleRate)
		if err != nil {
			return fmt.Errorf("start recording: %w", err)
		}
		rec = r
		ecfg.Tap = r
	}

	eng := audiocapture.New(ecfg)

	hooks := scfg.Hooks
	onOpen, onState := hooks.OnOpen, hooks.OnState
	hooks.OnOpen = func() {
		eng.TransportOpened()
		if onOpen != nil {
			onOpen()
		}
	}
	hooks.OnState = func(st stream.State) {
		if st == stream.StateDisconnected {
			eng.TransportClosed()
		}
		if onState != nil {
			onState(st)
		}
	}
	scfg.Hooks = hooks

	sess := stream.Connect(target, scfg)
	eng.Bind(sess)

	aa.session = sess
	aa.engine = eng
	aa.recorder = rec
	aa.record = recordPath
	return nil
}

// Start begins capture from selection.
func (aa *AudioAdapter) Start(selection string) error {
	eng := aa.current()
	if eng == nil {
		return ErrNotConnected
	}
	return eng.Start(selection)
}

// Stop stops capture and keeps the connection.
func (aa *AudioAdapter) Stop() {
	if eng := aa.current(); eng != nil {
		eng.Stop()
	}
}

// SetMuted sets the mute flag.
func (aa *AudioAdapter) SetMuted(muted bool) error {
	eng := aa.current()
	if eng == nil {
		return ErrNotConnected
	}
	eng.SetMuted(muted)
	return nil
}

// ToggleMute flips the mute flag and returns the new value.
func (aa *AudioAdapter) ToggleMute() (bool, error) {
	eng := aa.current()
	if eng == nil {
		return false, ErrNotConnected
	}
	return eng.ToggleMute(), nil
}

// End announces the end of the session, closes the connection without
// reconnecting and releases everything.
func (aa *AudioAdapter) End() error {
	aa.mu.Lock()
	defer aa.mu.Unlock()

	if aa.engine == nil {
		return ErrNotConnected
	}
	aa.engine.End()
	aa.releaseLocked()
	return nil
}

// Close stops capture and the connection without announcing an end.
func (aa *AudioAdapter) Close() {
	aa.mu.Lock()
	defer aa.mu.Unlock()
	aa.closeLocked()
}

// Status returns the capture status.
func (aa *AudioAdapter) Status() types.CaptureStatus {
	aa.mu.Lock()
	defer aa.mu.Unlock()

	if aa.engine == nil {
		return types.CaptureStatus{}
	}
	st := aa.engine.Status()
	return types.CaptureStatus{
		Connected:   aa.session.IsOpen(),
		Mode:        string(st.Mode),
		Device:      st.Device,
		Muted:       st.Muted,
		Initialized: st.Initialized,
		KeepAlive:   st.KeepAlive,
		Speaking:    st.Speaking,
		Recording:   aa.record,
	}
}

// Session returns the host session, or nil.
func (aa *AudioAdapter) Session() *stream.Session {
	aa.mu.Lock()
	defer aa.mu.Unlock()
	return aa.session
}

func (aa *AudioAdapter) current() *audiocapture.Engine {
	aa.mu.Lock()
	defer aa.mu.Unlock()
	return aa.engine
}

func (aa *AudioAdapter) closeLocked() {
	if aa.engine != nil {
		aa.engine.Stop()
	}
	if aa.session != nil {
		aa.session.Stop()
	}
	aa.releaseLocked()
}

func (aa *AudioAdapter) releaseLocked() {
	if aa.recorder != nil {
		if err := aa.recorder.Close(); err != nil {
			slog.Error("close recording", "path", aa.record, "error", err)
		} else {
			slog.Info("recording saved", "path", aa.record, "samples", aa.recorder.Samples())
		}
	}
	aa.session = nil
	aa.engine = nil
	aa.recorder = nil
	aa.record = ""
}
