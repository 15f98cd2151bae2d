// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"fretcheck/internal/audio"

	"github.com/spf13/cobra"
)

func (a *app) devicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host, closeHost, err := a.openHost(false)
			if err != nil {
				return err
			}
			defer closeHost()

			m, err := a.newManager(host)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go m.Run(ctx)

			m.Send(audio.GetDevices{})
			var resp audio.Devices
			select {
			case r := <-m.Responses():
				resp, _ = r.(audio.Devices)
			case <-ctx.Done():
				return ctx.Err()
			}
			if resp.Err != nil {
				return resp.Err
			}
			return printDevices(cmd, resp.Devices)
		},
	}
}

func printDevices(cmd *cobra.Command, devices []audio.Device) error {
	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		fmt.Fprintln(out, "No input devices found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCHANNELS\tRATE\tLATENCY\t")
	for _, d := range devices {
		name := d.DisplayName()
		if d.IsDefault {
			name += " (default)"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.0f Hz\t%s\t\n", d.ID, name, d.MaxInputChannels, d.DefaultSampleRate, d.DefaultLowInputLatency)
	}
	return w.Flush()
}
