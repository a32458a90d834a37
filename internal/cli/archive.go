package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"go.aimuz.me/meetstream/cache"
	"go.aimuz.me/meetstream/internal/app"
)

// NewArchiveCmd manages transcripts archived when sessions ended.
func NewArchiveCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage archived transcripts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List archived sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := openArchive(deps)
			defer svc.Shutdown()

			entries, err := svc.ArchivedSessions()
			if err != nil {
				return err
			}
			return printArchive(os.Stdout, entries)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <session>",
		Short: "Print an archived transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := openArchive(deps)
			defer svc.Shutdown()

			entries, ok := svc.ArchivedTranscript(args[0])
			if !ok {
				return fmt.Errorf("no archived transcript for session %q", args[0])
			}
			for _, e := range entries {
				fmt.Fprintln(os.Stdout, renderEntry(e))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <session>",
		Short: "Delete an archived transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := openArchive(deps)
			defer svc.Shutdown()

			if err := svc.DeleteArchive(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "* removed %s\n", args[0])
			return nil
		},
	})

	return cmd
}

// openArchive starts a service that only opens the cache.
func openArchive(deps *Dependencies) *app.Service {
	cfg := *deps.Config
	cfg.Hotkey.Enabled = false
	cfg.LangDetect.Enabled = false

	svc := app.New(app.Options{
		Version: deps.Build.Version,
		Config:  &cfg,
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
	})
	svc.Init()
	return svc
}

func printArchive(out io.Writer, entries []*cache.Entry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tINTEGRATION\tENTRIES\tARCHIVED\t")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t\n", e.SessionID, e.IntegrationID, len(e.Entries), e.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}
