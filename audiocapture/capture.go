// Package audiocapture turns one or two live audio sources into a steady
// cadence of encoded PCM16 frames on a streaming transport.
//
// Usage:
//
//	eng := audiocapture.New(audiocapture.Config{Provider: provider})
//	eng.Bind(session)
//	eng.TransportOpened()
//	if err := eng.Start("both"); err != nil {
//		// handle error
//	}
//	defer eng.Stop()
package audiocapture

import "errors"

var (
	// ErrRunning is returned when a source is started twice.
	ErrRunning = errors.New("audiocapture: already running")

	// ErrCaptureStart wraps every failure to bring capture up. Nothing is
	// left running when it is returned.
	ErrCaptureStart = errors.New("audiocapture: capture start failed")

	// ErrNoSystemSource is returned when no loopback device is configured.
	ErrNoSystemSource = errors.New("audiocapture: no system audio source configured")

	// ErrNoDevice is returned for an unknown device id.
	ErrNoDevice = errors.New("audiocapture: device not found")

	// ErrNoProvider is returned by Start when the engine has no DeviceProvider.
	ErrNoProvider = errors.New("audiocapture: no device provider")
)

// AudioHandler receives mono float32 samples in [-1, 1].
// The slice is only valid for the duration of the call.
type AudioHandler func(samples []float32)

// Capturer is a live audio source.
type Capturer interface {
	// Start begins capture. The handler is called from a capture goroutine.
	Start(handler AudioHandler) error

	// Stop ends capture. It is safe to call more than once and on a
	// Capturer that never started.
	Stop() error

	// Name is a human-readable label for logs.
	Name() string
}

// Device describes an input device.
type Device struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Channels   int     `json:"channels"`
	SampleRate float64 `json:"sampleRate"`
	Default    bool    `json:"default"`
	Loopback   bool    `json:"loopback"`
}

// DeviceProvider enumerates and opens audio sources.
type DeviceProvider interface {
	Devices() ([]Device, error)

	// Microphone opens the input device with the given id. An empty id
	// selects the default input.
	Microphone(id string) (Capturer, error)

	// System opens the device carrying system playback.
	System() (Capturer, error)
}

// Transport is the outbound side of a streaming session.
type Transport interface {
	Send(frame []byte) error
	IsOpen() bool
	// Stop closes with a normal-closure code and suppresses reconnects.
	Stop()
}

// Selection values accepted by Engine.Start besides a device id.
const (
	SelectionMic    = "mic" // the configured microphone
	SelectionSystem = "system"
	SelectionBoth   = "both"
)

// Mode is the kind of capture currently running.
type Mode string

const (
	ModeNone   Mode = ""
	ModeMic    Mode = "mic"
	ModeSystem Mode = "system"
	ModeBoth   Mode = "both"
)

// Status is a snapshot of the engine.
type Status struct {
	Mode        Mode   `json:"mode"`
	Device      string `json:"device,omitempty"`
	Muted       bool   `json:"muted"`
	Initialized bool   `json:"initialized"`
	KeepAlive   bool   `json:"keepAlive"`
	Speaking    bool   `json:"speaking"`
}
