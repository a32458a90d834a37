package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.aimuz.me/meetstream/audiocapture"
	"go.aimuz.me/meetstream/follow"
	"go.aimuz.me/meetstream/internal/app"
	"go.aimuz.me/meetstream/internal/types"
	"go.aimuz.me/meetstream/stream"
	"go.aimuz.me/meetstream/transcript"
)

// printer renders service events as lines on a terminal. Only entries
// whose rendering changed since the last snapshot are printed.
type printer struct {
	mu       sync.Mutex
	w        io.Writer
	finals   bool
	rendered map[string]string
}

func newPrinter(w io.Writer, finalsOnly bool) *printer {
	return &printer{w: w, finals: finalsOnly, rendered: make(map[string]string)}
}

// Emit implements app.Emitter.
func (p *printer) Emit(name string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case app.EventTranscript:
		entries, _ := data.([]transcript.Entry)
		p.transcriptLocked(entries)
	case app.EventLiveState, app.EventHostState:
		fmt.Fprintf(p.w, "* %s\n", data)
	case app.EventDownload:
		if d, ok := data.(stream.DownloadStatus); ok {
			if d.Downloadable {
				fmt.Fprintf(p.w, "* transcript downloadable until %s\n", d.ExpiresAt.Format("15:04:05"))
			} else {
				fmt.Fprintln(p.w, "* download window closed")
			}
		}
	case app.EventCaptureStatus:
		if st, ok := data.(types.CaptureStatus); ok {
			fmt.Fprintf(p.w, "* capture mode=%s muted=%t\n", orNone(st.Mode), st.Muted)
		}
	case app.EventActivity:
		if a, ok := data.(audiocapture.Activity); ok && a.Speaking && a.Muted {
			fmt.Fprintln(p.w, "! you are muted")
		}
	case app.EventCaptureError:
		if ce, ok := data.(types.CaptureError); ok {
			fmt.Fprintf(p.w, "! capture %q failed: %s\n", ce.Selection, ce.Message)
		}
	case app.EventFollowNotice:
		if n, ok := data.(follow.Notice); ok && n.Visible {
			fmt.Fprintf(p.w, "* %s\n", n.Message)
		}
	}
}

func (p *printer) transcriptLocked(entries []transcript.Entry) {
	if len(entries) == 0 {
		// The ledger was cleared by a reconnect.
		clear(p.rendered)
		return
	}
	for _, e := range entries {
		if p.finals && !e.IsFinalized {
			continue
		}
		line := renderEntry(e)
		if p.rendered[e.ID] == line {
			continue
		}
		p.rendered[e.ID] = line
		fmt.Fprintln(p.w, line)
	}
}

func renderEntry(e transcript.Entry) string {
	var b strings.Builder
	if e.Speaker != "" {
		b.WriteString(e.Speaker)
		b.WriteString(": ")
	}
	b.WriteString(e.SourceText)
	if e.TranslatedText != "" {
		fmt.Fprintf(&b, " [%s]", e.TranslatedText)
	}
	switch {
	case e.CorrectionState == transcript.CorrectionCorrecting:
		b.WriteString(" (correcting)")
	case e.CorrectionState == transcript.CorrectionCorrected:
		b.WriteString(" (corrected)")
	case !e.IsFinalized:
		b.WriteString(" ...")
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
