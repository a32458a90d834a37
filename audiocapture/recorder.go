package audiocapture

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"go.aimuz.me/meetstream/wirecodec"
)

// ErrRecorderClosed is returned by WriteBlock after Close.
var ErrRecorderClosed = errors.New("audiocapture: recorder closed")

// Recorder writes sent blocks to a mono 16-bit WAV file. It implements Tap.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	samples int
	closed  bool
}

// NewRecorder creates path and prepares a WAV encoder for it.
func NewRecorder(path string, sampleRate int) (*Recorder, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	return &Recorder{
		file: f,
		enc:  wav.NewEncoder(f, sampleRate, 16, 1, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

// WriteBlock appends samples encoded exactly as they go on the wire.
func (r *Recorder) WriteBlock(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}

	// Round-trip through the wire codec so the file holds the sent samples.
	data := r.buf.Data[:0]
	for _, s := range wirecodec.DecodePCM16(wirecodec.EncodePCM16(samples)) {
		data = append(data, int(s))
	}
	r.buf.Data = data

	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	r.samples += len(samples)
	return nil
}

// Samples returns how many samples have been written.
func (r *Recorder) Samples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	encErr := r.enc.Close()
	fileErr := r.file.Close()
	return errors.Join(encErr, fileErr)
}
