// SPDX-License-Identifier: MIT
package cmd

import (
	"context"

	"fretcheck/internal/tui"

	"github.com/spf13/cobra"
)

func (a *app) tuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Pick and monitor an input device interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host, closeHost, err := a.openHost(true)
			if err != nil {
				return err
			}
			defer closeHost()

			m, err := a.newManager(host)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			done := make(chan struct{})
			go func() {
				defer close(done)
				m.Run(ctx)
			}()
			defer func() {
				cancel()
				<-done
			}()

			return tui.Run(m)
		},
	}
}
