// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"fretcheck/internal/analysis"
	"fretcheck/internal/audio"
	applog "fretcheck/internal/log"
	"fretcheck/internal/score"
	"fretcheck/internal/song"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) analyzeCommand() *cobra.Command {
	var (
		songPath string
		every    int
	)
	cmd := &cobra.Command{
		Use:   "analyze <input.wav>",
		Short: "Run the spectral analysis over a WAV file",
		Long: `Analyze replays a WAV file through the same capture pipeline a device
uses and prints the peak of every frame. With --song, the frames are scored
against the song's timeline, with the start of the file as timeline zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var scorer *score.Scorer
			if songPath != "" {
				s, err := song.Load(songPath)
				if err != nil {
					return err
				}
				if scorer, err = a.newScorer(s); err != nil {
					return err
				}
			}
			return a.analyzeFile(cmd.Context(), cmd.OutOrStdout(), args[0], scorer, every)
		},
	}
	cmd.Flags().StringVar(&songPath, "song", "", "Score the file against a song")
	cmd.Flags().IntVar(&every, "every", 1, "Print every n-th frame, 0 for none")
	return cmd
}

func (a *app) newScorer(s *score.Song) (*score.Scorer, error) {
	strategy, err := score.NewStrategy(a.cfg.Scoring.Strategy, a.cfg.Scoring.ToleranceCents)
	if err != nil {
		return nil, err
	}
	return score.NewScorer(s, strategy, score.PolicyFromConfig(a.cfg.Scoring))
}

// analyzeFile plays path through a device manager as fast as possible and
// consumes every frame.
func (a *app) analyzeFile(ctx context.Context, out io.Writer, path string, scorer *score.Scorer, every int) error {
	host, err := audio.NewFileHost(path)
	if err != nil {
		return err
	}
	dev, _ := host.DefaultInputDevice()
	sc, err := host.DefaultInputConfig(dev)
	if err != nil {
		return err
	}

	// The session never waits for the consumer, so the frame channel must
	// hold the whole file.
	sessOpts, err := audio.SessionOptionsFromConfig(a.cfg)
	if err != nil {
		return err
	}
	total := int(host.Duration().Seconds()*sc.SampleRate) + 1
	sessOpts.FrameBuffer = max(analysis.FrameCount(total, sessOpts.WindowSize, sessOpts.HopSize), 1)

	m := audio.NewManager(host, audio.ManagerOptions{
		Stream:  audio.StreamOptionsFromConfig(a.cfg.Audio),
		Session: sessOpts,
	})
	host.OnFinish = func() { m.Send(audio.DisconnectFromDevice{}) }

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		m.Send(audio.ConnectToDefaultDevice{})
		return consumeFile(ctx, out, m.Responses(), scorer, every)
	})
	return g.Wait()
}

func consumeFile(ctx context.Context, out io.Writer, responses <-chan audio.Response, scorer *score.Scorer, every int) error {
	var frames <-chan analysis.SpectralFrame
	for frames == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-responses:
			if !ok {
				return errors.New("device manager stopped")
			}
			switch resp := r.(type) {
			case audio.DeviceConnected:
				frames = resp.Frames
				applog.Infof("Analyze: %s at %.0f Hz", resp.Device.DisplayName(), resp.Config.SampleRate)
			case audio.DeviceFailedToConnect:
				return resp.Err
			}
		}
	}

	var (
		n    int
		last time.Duration
	)
	for f := range frames {
		n++
		last = f.Progress
		if every > 0 && (n-1)%every == 0 {
			hz, mag := f.PeakFrequency()
			fmt.Fprintf(out, "%10s  peak %8.2f Hz  magnitude %8.2f  rms %.4f\n", f.Progress, hz, mag, f.RMS())
		}
		if scorer != nil {
			scorer.Advance(f.Progress)
			printOutcomes(out, scorer.Process(&f), scorer.Hits())
		}
	}
	fmt.Fprintf(out, "%d frames, last at %s\n", n, last)

	if scorer != nil {
		printOutcomes(out, scorer.Finish(last), scorer.Hits())
		fmt.Fprintln(out, scorer.Summary())
	}
	return nil
}

func printOutcomes(out io.Writer, outcomes []score.Outcome, hits int) {
	for _, o := range outcomes {
		fmt.Fprintf(out, "note %3d  %-6s  %-6s  expected %-8s  best %8.2f  samples %d\n",
			o.Index, o.Note, o.Result, o.Expected, o.Best, o.Samples)
	}
	if len(outcomes) > 0 {
		applog.Debugf("Analyze: %d hits so far", hits)
	}
}
