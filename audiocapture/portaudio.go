package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Name fragments of common loopback inputs, used when no system device
// is configured.
var loopbackHints = []string{"monitor of", "loopback", "blackhole", "stereo mix", "soundflower"}

// PortAudioConfig holds configuration for the PortAudio provider.
type PortAudioConfig struct {
	SampleRate      int
	FramesPerBuffer int

	// SystemDevice names the loopback input that carries system playback,
	// by index or by name. Empty means auto-detect by name.
	SystemDevice string

	Logger *slog.Logger
}

// PortAudio opens capture devices through PortAudio.
type PortAudio struct {
	cfg PortAudioConfig
	log *slog.Logger
}

// NewPortAudio initializes PortAudio. Call Close when done.
func NewPortAudio(cfg PortAudioConfig) (*PortAudio, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = 1024
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return &PortAudio{cfg: cfg, log: logger.With("component", "portaudio")}, nil
}

// Close releases PortAudio.
func (p *PortAudio) Close() error {
	return portaudio.Terminate()
}

// Devices lists input devices.
func (p *PortAudio) Devices() ([]Device, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var defaultName string
	if d, err := portaudio.DefaultInputDevice(); err == nil {
		defaultName = d.Name
	}

	var devices []Device
	for i, info := range all {
		if info.MaxInputChannels <= 0 {
			continue
		}
		devices = append(devices, Device{
			ID:         strconv.Itoa(i),
			Name:       info.Name,
			Channels:   info.MaxInputChannels,
			SampleRate: info.DefaultSampleRate,
			Default:    info.Name == defaultName,
			Loopback:   p.isSystem(i, info),
		})
	}
	return devices, nil
}

// Microphone opens the input with the given index or name.
func (p *PortAudio) Microphone(id string) (Capturer, error) {
	if id == "" {
		info, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input: %w", err)
		}
		return p.newSource(info), nil
	}

	info, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	return p.newSource(info), nil
}

// System opens the configured loopback input, or the first input whose
// name looks like one.
func (p *PortAudio) System() (Capturer, error) {
	if p.cfg.SystemDevice != "" {
		info, err := p.lookup(p.cfg.SystemDevice)
		if errors.Is(err, ErrNoDevice) {
			return nil, fmt.Errorf("%w: %q not found", ErrNoSystemSource, p.cfg.SystemDevice)
		}
		if err != nil {
			return nil, err
		}
		return p.newSource(info), nil
	}

	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for i, info := range all {
		if info.MaxInputChannels > 0 && p.isSystem(i, info) {
			p.log.Debug("using loopback device", "name", info.Name)
			return p.newSource(info), nil
		}
	}
	return nil, ErrNoSystemSource
}

func (p *PortAudio) lookup(id string) (*portaudio.DeviceInfo, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if i, err := strconv.Atoi(id); err == nil {
		if i < 0 || i >= len(all) || all[i].MaxInputChannels <= 0 {
			return nil, fmt.Errorf("%w: index %d", ErrNoDevice, i)
		}
		return all[i], nil
	}
	for _, info := range all {
		if info.MaxInputChannels > 0 && strings.EqualFold(info.Name, id) {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoDevice, id)
}

func (p *PortAudio) isSystem(index int, info *portaudio.DeviceInfo) bool {
	if want := p.cfg.SystemDevice; want != "" {
		return want == strconv.Itoa(index) || strings.EqualFold(want, info.Name)
	}
	name := strings.ToLower(info.Name)
	for _, hint := range loopbackHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func (p *PortAudio) newSource(info *portaudio.DeviceInfo) *paSource {
	return &paSource{
		info:       info,
		sampleRate: p.cfg.SampleRate,
		frames:     p.cfg.FramesPerBuffer,
	}
}

// paSource is a mono input stream on one device.
type paSource struct {
	info       *portaudio.DeviceInfo
	sampleRate int
	frames     int

	mu     sync.Mutex
	stream *portaudio.Stream
}

func (s *paSource) Name() string { return s.info.Name }

func (s *paSource) Start(handler AudioHandler) error {
	if handler == nil {
		return errors.New("audiocapture: nil handler")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return ErrRunning
	}

	params := portaudio.LowLatencyParameters(s.info, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(s.sampleRate)
	params.FramesPerBuffer = s.frames

	st, err := portaudio.OpenStream(params, func(in []float32) {
		handler(in)
	})
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if err := st.Start(); err != nil {
		_ = st.Close()
		return fmt.Errorf("start stream: %w", err)
	}
	s.stream = st
	return nil
}

func (s *paSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	s.stream = nil
	return errors.Join(stopErr, closeErr)
}
