// Package wirecodec converts float audio samples into the PCM16 payloads
// carried by the streaming connection.
package wirecodec

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodePCM16 converts samples in [-1, 1] to little-endian signed 16-bit PCM.
// Out-of-range samples are clamped first.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}

		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodePCM16 interprets little-endian PCM16 bytes as samples.
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// ToTransportText encodes bytes as standard base64.
func ToTransportText(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromTransportText reverses ToTransportText.
func FromTransportText(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decode transport text: %w", err)
	}
	return data, nil
}
