package follow

import (
	"testing"
	"time"

	"go.aimuz.me/meetstream/internal/clock"
)

var vp = Viewport{Height: 500}

// itemAt returns an item whose follow target is the given offset.
func itemAt(target float64) Item {
	return Item{Top: target + vp.Height - DefaultPadding - 40, Height: 40}
}

func newFollower(t *testing.T) (*Follower, *clock.Fake, *[]Notice) {
	t.Helper()
	clk := clock.NewFake(time.Unix(0, 0))
	var notices []Notice
	f := New(Config{Clock: clk, OnNotice: func(n Notice) { notices = append(notices, n) }})
	t.Cleanup(f.Close)
	return f, clk, &notices
}

func TestTarget(t *testing.T) {
	f := New(Config{})
	tests := []struct {
		name string
		last Item
		vp   Viewport
		want float64
	}{
		{"content shorter than view", Item{Top: 0, Height: 40}, Viewport{Height: 500}, 0},
		{"bottom plus padding", Item{Top: 1000, Height: 40}, Viewport{Height: 500}, 556},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Target(tt.last, tt.vp); got != tt.want {
				t.Errorf("Target() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGrow_FollowsByDefault(t *testing.T) {
	f, _, _ := newFollower(t)

	target, ok := f.Grow(itemAt(800), vp)
	if !ok || target != 800 {
		t.Errorf("Grow() = %v, %v; want 800, true", target, ok)
	}
}

func TestScrolled_UserLeavesAndReturns(t *testing.T) {
	f, clk, notices := newFollower(t)
	last := itemAt(800)

	// Within tolerance: still following, no notice.
	f.Scrolled(last, Viewport{Top: 785, Height: vp.Height})
	if !f.Following() || len(*notices) != 0 {
		t.Fatalf("following=%v notices=%d after small drift", f.Following(), len(*notices))
	}

	f.Scrolled(last, Viewport{Top: 600, Height: vp.Height})
	if f.Following() {
		t.Fatal("still following after user scrolled away")
	}
	if _, ok := f.Grow(itemAt(900), vp); ok {
		t.Error("Grow() asked to scroll while not following")
	}
	if len(*notices) != 1 || (*notices)[0].Following || !(*notices)[0].Visible {
		t.Fatalf("notices = %+v", *notices)
	}

	clk.Advance(time.Second)
	f.Scrolled(itemAt(900), Viewport{Top: 890, Height: vp.Height})
	if !f.Following() {
		t.Fatal("not following after returning to the bottom")
	}
	if len(*notices) != 2 || !(*notices)[1].Following {
		t.Fatalf("notices = %+v", *notices)
	}
}

func TestScrolled_IgnoredDuringSuppression(t *testing.T) {
	f, clk, _ := newFollower(t)

	target, _ := f.Grow(itemAt(800), vp)
	// The view reports intermediate positions while animating to target.
	clk.Advance(50 * time.Millisecond)
	f.Scrolled(itemAt(800), Viewport{Top: target - 300, Height: vp.Height})
	if !f.Following() {
		t.Fatal("programmatic scroll treated as user scroll")
	}

	clk.Advance(50 * time.Millisecond)
	f.Scrolled(itemAt(800), Viewport{Top: target - 300, Height: vp.Height})
	if f.Following() {
		t.Error("scroll after suppression window ignored")
	}
}

func TestNotice_ExpiresAfterTTL(t *testing.T) {
	f, clk, notices := newFollower(t)
	last := itemAt(800)

	f.Scrolled(last, Viewport{Top: 0, Height: vp.Height})
	if n := f.Notice(); !n.Visible || !n.ExpiresAt.Equal(time.Unix(3, 0)) {
		t.Fatalf("Notice() = %+v", n)
	}

	clk.Advance(2999 * time.Millisecond)
	if !f.Notice().Visible {
		t.Fatal("notice expired early")
	}
	clk.Advance(time.Millisecond)
	if f.Notice().Visible {
		t.Fatal("notice still visible after 3s")
	}
	if len(*notices) != 2 || (*notices)[1].Visible {
		t.Errorf("notices = %+v, want appear then expire", *notices)
	}
}

func TestNotice_NewNoticeRestartsTTL(t *testing.T) {
	f, clk, notices := newFollower(t)
	last := itemAt(800)

	f.Scrolled(last, Viewport{Top: 0, Height: vp.Height})
	clk.Advance(2 * time.Second)
	f.Scrolled(last, Viewport{Top: 800, Height: vp.Height})

	clk.Advance(2 * time.Second)
	if !f.Notice().Visible || !f.Notice().Following {
		t.Fatalf("second notice cut short: %+v", f.Notice())
	}
	clk.Advance(time.Second)
	if f.Notice().Visible {
		t.Error("second notice did not expire")
	}
	if len(*notices) != 3 {
		t.Errorf("notices = %d, want 3", len(*notices))
	}
}

func TestResume(t *testing.T) {
	f, _, notices := newFollower(t)
	last := itemAt(800)

	if got := f.Resume(last, vp); got != 800 || len(*notices) != 0 {
		t.Fatalf("Resume() while following = %v with %d notices", got, len(*notices))
	}

	f.Scrolled(last, Viewport{Top: 0, Height: vp.Height})
	if got := f.Resume(last, vp); got != 800 {
		t.Errorf("Resume() = %v, want 800", got)
	}
	if !f.Following() {
		t.Error("Resume() did not re-enable following")
	}
	if len(*notices) != 2 || !(*notices)[1].Following {
		t.Errorf("notices = %+v", *notices)
	}
}
