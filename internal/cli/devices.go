package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go.aimuz.me/meetstream/audiocapture"
)

// NewDevicesCmd lists capture devices.
func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			pa, err := audiocapture.NewPortAudio(audiocapture.PortAudioConfig{
				SampleRate:   deps.Config.Audio.SampleRate,
				SystemDevice: deps.Config.Audio.SystemDevice,
				Logger:       deps.Logger,
			})
			if err != nil {
				return err
			}
			defer pa.Close()

			devices, err := pa.Devices()
			if err != nil {
				return err
			}
			return printDevices(devices)
		},
	}
}

func printDevices(devices []audiocapture.Device) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCHANNELS\tRATE\t")
	for _, d := range devices {
		var flags string
		if d.Default {
			flags += " default"
		}
		if d.Loopback {
			flags += " system"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.0f\t%s\n", d.ID, d.Name, d.Channels, d.SampleRate, flags)
	}
	return w.Flush()
}
