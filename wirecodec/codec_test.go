package wirecodec

import (
	"bytes"
	"testing"
)

func TestEncodePCM16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"full positive", 1, 32767},
		{"full negative", -1, -32768},
		{"half positive", 0.5, 16383},
		{"half negative", -0.5, -16384},
		{"clamp high", 2.5, 32767},
		{"clamp low", -7, -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodePCM16(EncodePCM16([]float32{tt.in}))
			if len(got) != 1 {
				t.Fatalf("decoded %d samples, want 1", len(got))
			}
			if got[0] != tt.want {
				t.Errorf("EncodePCM16(%v) = %d, want %d", tt.in, got[0], tt.want)
			}
		})
	}
}

func TestEncodePCM16_LittleEndian(t *testing.T) {
	got := EncodePCM16([]float32{1, -1})
	want := []byte{0xff, 0x7f, 0x00, 0x80}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodePCM16 = % x, want % x", got, want)
	}
}

func TestTransportText_RoundTrip(t *testing.T) {
	inputs := [][]byte{
		nil,
		{0},
		{0xff, 0x00, 0x7f, 0x80, 0x01},
		EncodePCM16(make([]float32, 4096)),
	}

	for _, in := range inputs {
		out, err := FromTransportText(ToTransportText(in))
		if err != nil {
			t.Fatalf("FromTransportText: %v", err)
		}
		if !bytes.Equal(out, in) && !(len(out) == 0 && len(in) == 0) {
			t.Errorf("round trip mismatch: got % x, want % x", out, in)
		}
	}
}

func TestFromTransportText_Invalid(t *testing.T) {
	if _, err := FromTransportText("not base64!"); err == nil {
		t.Error("expected error for invalid input")
	}
}
