package audiocapture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"go.aimuz.me/meetstream/wirecodec"
)

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.wav")

	r, err := NewRecorder(path, 16000)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if err := r.WriteBlock([]float32{0.5, -0.5, 2, -2}); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := r.WriteBlock(make([]float32, 4)); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if r.Samples() != 8 {
		t.Errorf("Samples() = %d, want 8", r.Samples())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := r.WriteBlock([]float32{0}); !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("WriteBlock after Close = %v, want ErrRecorderClosed", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("recording is not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Format.SampleRate != 16000 || buf.Format.NumChannels != 1 {
		t.Errorf("format = %+v", buf.Format)
	}

	want := []int{16383, -16384, 32767, -32768, 0, 0, 0, 0}
	if len(buf.Data) != len(want) {
		t.Fatalf("samples = %d, want %d", len(buf.Data), len(want))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], want[i])
		}
	}
}

func TestRecorder_MatchesWireEncoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wire.wav")
	samples := []float32{0.1, -0.3333, 0.999, 1.5, -0.00001, -1}

	r, err := NewRecorder(path, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.WriteBlock(samples); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	wire := wirecodec.DecodePCM16(wirecodec.EncodePCM16(samples))
	if len(buf.Data) != len(wire) {
		t.Fatalf("samples = %d, want %d", len(buf.Data), len(wire))
	}
	for i := range wire {
		if buf.Data[i] != int(wire[i]) {
			t.Errorf("sample %d = %d, wire has %d", i, buf.Data[i], wire[i])
		}
	}
}
