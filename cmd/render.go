// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"strings"
	"time"

	"fretcheck/internal/song"

	"github.com/spf13/cobra"
)

func (a *app) renderCommand() *cobra.Command {
	var opts song.RenderOptions
	cmd := &cobra.Command{
		Use:   "render <song" + song.Extension + "> [output.wav]",
		Short: "Synthesise a song's notes into a WAV file",
		Long: `Render writes one sine tone per note at the note's hit time. The output
is useful for checking a song file by ear and as input for 'play --input'
and 'analyze'.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := song.Load(args[0])
			if err != nil {
				return err
			}
			out := strings.TrimSuffix(args[0], song.Extension) + ".wav"
			if len(args) == 2 {
				out = args[1]
			}
			if err := song.Render(s, out, opts); err != nil {
				return fmt.Errorf("failed to render %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rendered %q (%d notes, %s) to %s\n",
				s.Title, len(s.Notes), s.Length().Round(time.Millisecond), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.SampleRate, "sample-rate", 44100, "Output sample rate (Hz)")
	cmd.Flags().IntVar(&opts.BitDepth, "bit-depth", 16, "Output bit depth (16 or 24)")
	cmd.Flags().DurationVar(&opts.NoteLength, "note-length", 250*time.Millisecond, "Length of each tone")
	cmd.Flags().Float64Var(&opts.Amplitude, "amplitude", 0.5, "Peak amplitude of each tone")
	cmd.Flags().DurationVar(&opts.Tail, "tail", time.Second, "Silence after the last note")
	return cmd
}
