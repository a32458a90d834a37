package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"go.aimuz.me/meetstream/audiocapture"
	"go.aimuz.me/meetstream/internal/app"
)

const hostHelp = `commands: m (toggle mute), s (stop capture), r (restart capture), e (end meeting), q (quit)`

// NewHostCmd streams captured audio to a session.
func NewHostCmd(deps *Dependencies) *cobra.Command {
	var (
		sessionID string
		source    string
		record    string
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Stream audio to a session",
		Long:  "Connect as the host and stream microphone and/or system audio.\nSource is a device id or name, \"system\" or \"both\".\n" + hostHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := deps.Token()
			if err != nil {
				return err
			}
			if record != "" {
				deps.Config.Audio.RecordPath = record
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runHost(ctx, deps, sessionID, token, source, os.Stdin)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id")
	cmd.Flags().StringVar(&source, "source", "", "capture source (default from config)")
	cmd.Flags().StringVar(&record, "record", "", "also write the sent audio to this WAV file")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runHost(ctx context.Context, deps *Dependencies, sessionID, token, source string, in io.Reader) error {
	pa, err := audiocapture.NewPortAudio(audiocapture.PortAudioConfig{
		SampleRate:   deps.Config.Audio.SampleRate,
		SystemDevice: deps.Config.Audio.SystemDevice,
		Logger:       deps.Logger,
	})
	if err != nil {
		return err
	}
	defer pa.Close()

	p := newPrinter(os.Stdout, false)
	svc := app.New(app.Options{
		Version:  deps.Build.Version,
		Config:   deps.Config,
		Metrics:  deps.Metrics,
		Logger:   deps.Logger,
		Emit:     p.Emit,
		Notifier: app.DesktopNotifier{AppName: "meetstream"},
		Provider: pa,
	})
	svc.Init()
	defer svc.Shutdown()

	if err := svc.StartHost(sessionID, token); err != nil {
		return err
	}
	if err := svc.StartCapture(source); err != nil {
		// Keep-alive continues; the operator can retry with r.
		fmt.Fprintf(os.Stdout, "! %v\n", err)
	}
	fmt.Fprintln(os.Stdout, hostHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			done, err := hostCommand(svc, line, source)
			if err != nil {
				fmt.Fprintf(os.Stdout, "! %v\n", err)
			}
			if done {
				return nil
			}
		}
	}
}

// hostCommand runs one operator command. done reports whether the host
// should exit.
func hostCommand(svc *app.Service, line, source string) (done bool, err error) {
	switch line {
	case "":
		return false, nil
	case "m":
		_, err := svc.ToggleMute()
		return false, err
	case "s":
		svc.StopCapture()
		return false, nil
	case "r":
		return false, svc.StartCapture(source)
	case "e":
		return true, svc.EndSession()
	case "q":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q; %s", line, hostHelp)
	}
}
