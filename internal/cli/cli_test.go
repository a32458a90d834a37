package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"go.aimuz.me/meetstream/cache"
	"go.aimuz.me/meetstream/internal/app"
	"go.aimuz.me/meetstream/internal/types"
	"go.aimuz.me/meetstream/stream"
	"go.aimuz.me/meetstream/transcript"
)

func TestRenderEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry transcript.Entry
		want  string
	}{
		{
			name:  "partial",
			entry: transcript.Entry{Speaker: "Ana", SourceText: "Hel"},
			want:  "Ana: Hel ...",
		},
		{
			name:  "final with translation",
			entry: transcript.Entry{Speaker: "Ana", SourceText: "Hello", TranslatedText: "Bonjour", IsFinalized: true},
			want:  "Ana: Hello [Bonjour]",
		},
		{
			name:  "no speaker",
			entry: transcript.Entry{SourceText: "Hi", IsFinalized: true},
			want:  "Hi",
		},
		{
			name:  "correcting",
			entry: transcript.Entry{SourceText: "Hi", IsFinalized: true, CorrectionState: transcript.CorrectionCorrecting},
			want:  "Hi (correcting)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderEntry(tt.entry); got != tt.want {
				t.Errorf("renderEntry() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrinter_PrintsChangedEntriesOnce(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, false)

	e1 := transcript.Entry{ID: "m1", SourceText: "Hel"}
	p.Emit(app.EventTranscript, []transcript.Entry{e1})
	p.Emit(app.EventTranscript, []transcript.Entry{e1})

	e1.SourceText, e1.IsFinalized = "Hello", true
	e2 := transcript.Entry{ID: "m2", SourceText: "Next"}
	p.Emit(app.EventTranscript, []transcript.Entry{e1, e2})

	want := "Hel ...\nHello\nNext ...\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPrinter_ReprintsAfterClear(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, true)

	e := transcript.Entry{ID: "m1", SourceText: "Hello", IsFinalized: true}
	p.Emit(app.EventTranscript, []transcript.Entry{e, {ID: "m2", SourceText: "pending"}})
	p.Emit(app.EventTranscript, []transcript.Entry{})
	p.Emit(app.EventTranscript, []transcript.Entry{e})

	if got := strings.Count(buf.String(), "Hello\n"); got != 2 {
		t.Errorf("final printed %d times, want 2:\n%s", got, buf.String())
	}
	if strings.Contains(buf.String(), "pending") {
		t.Error("partial entry printed in finals mode")
	}
}

func TestPrinter_StatusEvents(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, false)

	p.Emit(app.EventLiveState, stream.StateWaiting)
	p.Emit(app.EventCaptureStatus, types.CaptureStatus{Muted: true})
	p.Emit(app.EventCaptureError, types.CaptureError{Selection: "system", Message: "no loopback"})
	p.Emit(app.EventDownload, stream.DownloadStatus{})

	out := buf.String()
	for _, want := range []string{"* waiting", "mode=none muted=true", `capture "system" failed`, "download window closed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestToken(t *testing.T) {
	t.Setenv(tokenEnv, "")

	d := &Dependencies{}
	if _, err := d.Token(); err == nil {
		t.Error("Token() without flag or env: expected error")
	}

	t.Setenv(tokenEnv, "from-env")
	if got, _ := d.Token(); got != "from-env" {
		t.Errorf("Token() = %q, want from-env", got)
	}

	d.token = "from-flag"
	if got, _ := d.Token(); got != "from-flag" {
		t.Errorf("Token() = %q, want from-flag", got)
	}
}

func TestHostCommand(t *testing.T) {
	svc := app.New(app.Options{})
	t.Cleanup(svc.Shutdown)

	tests := []struct {
		line     string
		wantDone bool
		wantErr  error
	}{
		{line: "", wantDone: false},
		{line: "m", wantErr: app.ErrNotConnected},
		{line: "r", wantErr: app.ErrNotConnected},
		{line: "s"},
		{line: "e", wantDone: true, wantErr: app.ErrNotConnected},
		{line: "q", wantDone: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			done, err := hostCommand(svc, tt.line, "both")
			if done != tt.wantDone {
				t.Errorf("done = %v, want %v", done, tt.wantDone)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected err = %v", err)
			}
		})
	}

	if _, err := hostCommand(svc, "x", "both"); err == nil {
		t.Error("unknown command: expected error")
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd(BuildInfo{Version: "1.0.0"})
	for _, name := range []string{"view", "host", "devices", "config", "archive"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
}

func TestPrintArchive(t *testing.T) {
	var buf bytes.Buffer
	entries := []*cache.Entry{{
		IntegrationID: "acme",
		SessionID:     "s1",
		Entries:       make([]transcript.Entry, 3),
		CreatedAt:     time.Date(2026, 5, 1, 9, 0, 0, 0, time.Local),
	}}
	if err := printArchive(&buf, entries); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for _, want := range []string{"s1", "acme", "3", "2026-05-01 09:00:00"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %q", lines[1], want)
		}
	}
}
