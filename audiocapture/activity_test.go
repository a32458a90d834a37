package audiocapture

import (
	"testing"
	"time"

	"go.aimuz.me/meetstream/internal/clock"
)

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float32
	}{
		{"empty", nil, 0},
		{"silence", constBlock(8, 0), 0},
		{"constant", constBlock(8, 0.5), 0.5},
		{"alternating", []float32{0.25, -0.25, 0.25, -0.25}, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rms(tt.samples); got != tt.want {
				t.Errorf("rms() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActivity_Sequence(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	a := newActivity(0.02, 500*time.Millisecond, clk)

	loud := constBlock(16, 0.1)
	quiet := constBlock(16, 0)

	steps := []struct {
		name         string
		block        []float32
		advance      time.Duration
		wantSpeaking bool
		wantChanged  bool
	}{
		{"quiet start", quiet, 0, false, false},
		{"speech begins", loud, 100 * time.Millisecond, true, true},
		{"speech continues", loud, 100 * time.Millisecond, true, false},
		{"short pause", quiet, 300 * time.Millisecond, true, false},
		{"speech again", loud, 100 * time.Millisecond, true, false},
		{"pause within hangover", quiet, 400 * time.Millisecond, true, false},
		{"pause past hangover", quiet, 100 * time.Millisecond, false, true},
		{"still quiet", quiet, time.Second, false, false},
	}

	for _, s := range steps {
		clk.Advance(s.advance)
		speaking, changed := a.Observe(s.block)
		if speaking != s.wantSpeaking || changed != s.wantChanged {
			t.Errorf("%s: Observe() = (%v, %v), want (%v, %v)",
				s.name, speaking, changed, s.wantSpeaking, s.wantChanged)
		}
		if a.Speaking() != speaking {
			t.Errorf("%s: Speaking() = %v, want %v", s.name, a.Speaking(), speaking)
		}
	}
}
