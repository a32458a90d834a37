package audiocapture

import (
	"math"
	"sync/atomic"
	"time"

	"go.aimuz.me/meetstream/internal/clock"
)

// Defaults for voice activity tracking.
const (
	DefaultActivityThreshold = 0.02
	DefaultActivityHangover  = 800 * time.Millisecond
)

// Activity reports a change in whether the captured audio carries speech.
// Muted is the mute flag when the change was observed, so a caller can
// warn a host who talks while muted.
type Activity struct {
	Speaking bool `json:"speaking"`
	Muted    bool `json:"muted"`
}

// activity is an RMS voice detector with a hangover: speech starts on the
// first loud block and ends once no loud block was seen for the hangover.
type activity struct {
	threshold float32
	hangover  time.Duration
	clock     clock.Clock

	speaking  atomic.Bool
	lastVoice time.Time
}

func newActivity(threshold float32, hangover time.Duration, clk clock.Clock) *activity {
	return &activity{threshold: threshold, hangover: hangover, clock: clk}
}

// Observe classifies block and reports whether the speaking state changed.
// It is not safe for concurrent use.
func (a *activity) Observe(block []float32) (speaking, changed bool) {
	now := a.clock.Now()
	was := a.speaking.Load()

	if rms(block) > a.threshold {
		a.lastVoice = now
		if !was {
			a.speaking.Store(true)
			return true, true
		}
		return true, false
	}

	if was && now.Sub(a.lastVoice) >= a.hangover {
		a.speaking.Store(false)
		return false, true
	}
	return was, false
}

// Speaking reports the current state. Safe for concurrent use.
func (a *activity) Speaking() bool {
	return a.speaking.Load()
}

func rms(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
