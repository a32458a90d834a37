// Package follow decides when a transcript view should track the newest
// entry and tells a user-interface layer where to scroll.
//
// Positions are in the view's content coordinates (pixels): Viewport.Top is
// the scroll offset and Item.Top the offset of the last entry.
package follow

import (
	"math"
	"sync"
	"time"

	"go.aimuz.me/meetstream/internal/clock"
)

// Defaults applied to zero Config fields.
const (
	DefaultTolerance   = 20.0
	DefaultPadding     = 16.0
	DefaultSuppression = 100 * time.Millisecond
	DefaultNoticeTTL   = 3 * time.Second
)

// Item is the layout of the last transcript entry.
type Item struct {
	Top    float64
	Height float64
}

// Viewport is the visible window over the content.
type Viewport struct {
	Top    float64
	Height float64
}

// Notice is a transient message about a follow-mode change.
type Notice struct {
	Following bool
	Message   string
	Visible   bool
	ExpiresAt time.Time
}

// Config holds configuration for a Follower.
// Zero values are replaced with sensible defaults.
type Config struct {
	Tolerance   float64
	Padding     float64
	Suppression time.Duration
	NoticeTTL   time.Duration
	Clock       clock.Clock

	// OnNotice is called when a notice appears and again when it expires.
	// It runs without the Follower lock held.
	OnNotice func(Notice)
}

// Follower tracks whether the view follows the newest entry. It starts in
// following mode.
type Follower struct {
	cfg Config

	mu            sync.Mutex
	following     bool
	suppressUntil time.Time
	notice        Notice
	noticeTimer   clock.Timer
	noticeSeq     uint64
}

// New creates a Follower.
func New(cfg Config) *Follower {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Padding <= 0 {
		cfg.Padding = DefaultPadding
	}
	if cfg.Suppression <= 0 {
		cfg.Suppression = DefaultSuppression
	}
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = DefaultNoticeTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Follower{cfg: cfg, following: true}
}

// Following reports whether the view tracks the newest entry.
func (f *Follower) Following() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.following
}

// Notice returns the current notice. Visible is false once it expired.
func (f *Follower) Notice() Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notice
}

// Target returns the scroll offset that shows last with trailing padding.
func (f *Follower) Target(last Item, vp Viewport) float64 {
	return math.Max(0, last.Top+last.Height+f.cfg.Padding-vp.Height)
}

// Grow is called when the ledger grew. When following it returns the
// offset to scroll to and ignores scroll signals for the suppression
// window that follows.
func (f *Follower) Grow(last Item, vp Viewport) (target float64, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.following {
		return 0, false
	}
	f.suppressUntil = f.cfg.Clock.Now().Add(f.cfg.Suppression)
	return f.Target(last, vp), true
}

// Scrolled is called for every scroll signal from the view. Signals inside
// the suppression window are treated as our own scrolling.
func (f *Follower) Scrolled(last Item, vp Viewport) {
	f.mu.Lock()
	now := f.cfg.Clock.Now()
	if now.Before(f.suppressUntil) {
		f.mu.Unlock()
		return
	}

	near := math.Abs(vp.Top-f.Target(last, vp)) <= f.cfg.Tolerance
	if near == f.following {
		f.mu.Unlock()
		return
	}
	f.following = near
	n := f.raiseLocked(now)
	f.mu.Unlock()

	f.emit(n)
}

// Resume re-enables following, as for a "jump to latest" action, and
// returns the offset to scroll to.
func (f *Follower) Resume(last Item, vp Viewport) float64 {
	f.mu.Lock()
	now := f.cfg.Clock.Now()
	f.suppressUntil = now.Add(f.cfg.Suppression)
	target := f.Target(last, vp)
	if f.following {
		f.mu.Unlock()
		return target
	}
	f.following = true
	n := f.raiseLocked(now)
	f.mu.Unlock()

	f.emit(n)
	return target
}

// Close cancels a pending notice expiry.
func (f *Follower) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noticeTimer != nil {
		f.noticeTimer.Stop()
		f.noticeTimer = nil
	}
	f.noticeSeq++
}

func (f *Follower) raiseLocked(now time.Time) Notice {
	msg := "Auto-scroll paused"
	if f.following {
		msg = "Following live transcript"
	}
	f.notice = Notice{
		Following: f.following,
		Message:   msg,
		Visible:   true,
		ExpiresAt: now.Add(f.cfg.NoticeTTL),
	}

	if f.noticeTimer != nil {
		f.noticeTimer.Stop()
	}
	f.noticeSeq++
	seq := f.noticeSeq
	f.noticeTimer = f.cfg.Clock.AfterFunc(f.cfg.NoticeTTL, func() { f.expire(seq) })
	return f.notice
}

func (f *Follower) expire(seq uint64) {
	f.mu.Lock()
	if seq != f.noticeSeq {
		f.mu.Unlock()
		return
	}
	f.noticeTimer = nil
	f.notice.Visible = false
	n := f.notice
	f.mu.Unlock()

	f.emit(n)
}

func (f *Follower) emit(n Notice) {
	if f.cfg.OnNotice != nil {
		f.cfg.OnNotice(n)
	}
}
