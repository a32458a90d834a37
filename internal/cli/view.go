package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go.aimuz.me/meetstream/internal/app"
	"go.aimuz.me/meetstream/stream"
)

// NewViewCmd follows the transcript of a session.
func NewViewCmd(deps *Dependencies) *cobra.Command {
	var (
		sessionID  string
		download   string
		finalsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Follow the live transcript of a session",
		Long:  "Connect as a viewer and print the transcript as it arrives.\nWith --download the final transcript is saved once the meeting ends.",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := deps.Token()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runView(ctx, deps, sessionID, token, download, finalsOnly)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id")
	cmd.Flags().StringVarP(&download, "download", "d", "", "save the final transcript to this file")
	cmd.Flags().BoolVar(&finalsOnly, "finals", false, "print finalized entries only")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runView(ctx context.Context, deps *Dependencies, sessionID, token, download string, finalsOnly bool) error {
	p := newPrinter(os.Stdout, finalsOnly)

	// Viewers have nothing to mute.
	cfg := *deps.Config
	cfg.Hotkey.Enabled = false

	ready := make(chan struct{}, 1)
	svc := app.New(app.Options{
		Version: deps.Build.Version,
		Config:  &cfg,
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
		Emit: func(name string, data any) {
			p.Emit(name, data)
			if d, ok := data.(stream.DownloadStatus); ok && name == app.EventDownload && d.Downloadable {
				select {
				case ready <- struct{}{}:
				default:
				}
			}
		},
		Notifier: app.DesktopNotifier{AppName: "meetstream"},
	})
	svc.Init()
	defer svc.Shutdown()

	if err := svc.StartViewer(sessionID, token); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ready:
			if download == "" {
				continue
			}
			if err := saveArtifact(ctx, svc, download); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "* transcript saved to %s\n", download)
			return nil
		}
	}
}

func saveArtifact(ctx context.Context, svc *app.Service, path string) error {
	art, err := svc.DownloadTranscript(ctx)
	if errors.Is(err, app.ErrNotDownloadable) {
		return fmt.Errorf("download window closed before the transcript was fetched: %w", err)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
