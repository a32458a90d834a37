package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.aimuz.me/meetstream/config"
	"go.aimuz.me/meetstream/hotkey"
)

// NewConfigCmd shows and edits the configuration file.
func NewConfigCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(os.Stderr, "# %s\n", deps.Config.Path())
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(deps.Config)
		},
	})

	var server config.ServerConfig
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Set the meeting service location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.Config.SetServer(server)
		},
	}
	serverCmd.Flags().StringVar(&server.Host, "host", "", "host[:port]")
	serverCmd.Flags().StringVar(&server.Scheme, "scheme", "wss", "ws or wss")
	serverCmd.Flags().StringVar(&server.IntegrationID, "integration", "", "integration id")
	_ = serverCmd.MarkFlagRequired("host")
	_ = serverCmd.MarkFlagRequired("integration")
	cmd.AddCommand(serverCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "language <tag>",
		Short: "Set the transcript target language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.Config.SetTargetLanguage(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "source <selection>",
		Short: "Set the default capture source (device id, system or both)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deps.Config.SetAudioSource(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "hotkey <combo>",
		Short: `Set the mute shortcut, e.g. "ctrl+shift+m"; "" disables it`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "" {
				if _, err := hotkey.ParseCombo(args[0]); err != nil {
					return err
				}
			}
			return deps.Config.SetMuteHotkey(args[0])
		},
	})

	return cmd
}
