package audiocapture

import "sync"

// blocker accumulates samples from the clocking source and cuts them into
// fixed-size blocks.
type blocker struct {
	size    int
	samples []float32
}

func newBlocker(size int) *blocker {
	return &blocker{
		size:    size,
		samples: make([]float32, 0, size*2),
	}
}

// Append adds samples and calls emit once per complete block. Each block
// is a fresh slice owned by the callee.
func (b *blocker) Append(samples []float32, emit func(block []float32)) {
	b.samples = append(b.samples, samples...)
	for len(b.samples) >= b.size {
		block := make([]float32, b.size)
		copy(block, b.samples)

		n := copy(b.samples, b.samples[b.size:])
		b.samples = b.samples[:n]

		emit(block)
	}
}

// Len returns the number of samples waiting for a full block.
func (b *blocker) Len() int {
	return len(b.samples)
}

// fifo is a bounded sample queue for a source that does not clock blocks.
// Past its limit the oldest samples are dropped.
type fifo struct {
	mu      sync.Mutex
	samples []float32
	limit   int
	dropped int
}

func newFIFO(limit int) *fifo {
	return &fifo{
		samples: make([]float32, 0, limit),
		limit:   limit,
	}
}

// Append queues samples. It is safe to call from a capture goroutine.
func (f *fifo) Append(samples []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.samples = append(f.samples, samples...)
	if over := len(f.samples) - f.limit; over > 0 {
		n := copy(f.samples, f.samples[over:])
		f.samples = f.samples[:n]
		f.dropped += over
	}
}

// Take removes up to n samples. The result always has length n and is
// zero-padded when the queue runs short.
func (f *fifo) Take(n int) []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]float32, n)
	k := copy(out, f.samples)
	rest := copy(f.samples, f.samples[k:])
	f.samples = f.samples[:rest]
	return out
}

// Len returns the number of queued samples.
func (f *fifo) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

// Dropped returns how many samples were discarded for overflow.
func (f *fifo) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// mixInto adds src into dst sample by sample. Clamping is left to the
// encoder.
func mixInto(dst, src []float32) {
	for i := range min(len(dst), len(src)) {
		dst[i] += src[i]
	}
}
