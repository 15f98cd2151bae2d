// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fretcheck/internal/config"
	applog "fretcheck/internal/log"
	"fretcheck/internal/perform"
	"fretcheck/internal/score"
	"fretcheck/internal/song"
	"fretcheck/internal/transport"
	"fretcheck/internal/transport/udp"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) playCommand() *cobra.Command {
	var tick time.Duration
	cmd := &cobra.Command{
		Use:   "play <song" + song.Extension + ">",
		Short: "Score a live performance of a song",
		Long: `Play connects to the input device, starts the song's timeline and scores
every note as it passes. Frames and outcomes can be streamed to visualisers
over UDP and WebSocket.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := song.Load(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sum, err := a.play(ctx, cmd.OutOrStdout(), s, tick)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum)
			return nil
		},
	}

	f := cmd.Flags()
	f.String(keyStrategy, config.DefaultStrategy, "Scoring strategy: fundamental, harmonic or rms")
	f.Float64(keyThreshold, config.DefaultThreshold, "Score a note must exceed to count as hit")
	f.Duration(keyForgiveness, config.DefaultForgiveness, "Timing tolerance around each note")
	f.Duration(keyCountIn, config.DefaultCountIn, "Silence before the first beat")
	f.Bool(keyUDP, false, "Stream spectral packets over UDP")
	f.String(keyUDPTarget, "", "UDP target address (host:port)")
	f.Bool(keyWS, false, "Serve frames and outcomes over WebSocket")
	f.String(keyWSAddress, "", "WebSocket listen address")
	f.DurationVar(&tick, "tick", perform.DefaultTickInterval, "Main loop interval")
	return cmd
}

// play runs one performance of s and returns its summary.
func (a *app) play(ctx context.Context, out io.Writer, s *score.Song, tick time.Duration) (score.Summary, error) {
	strategy, err := score.NewStrategy(a.cfg.Scoring.Strategy, a.cfg.Scoring.ToleranceCents)
	if err != nil {
		return score.Summary{}, err
	}
	sink, closeSinks, err := a.buildSinks()
	if err != nil {
		return score.Summary{}, err
	}
	defer closeSinks()

	policy := score.PolicyFromConfig(a.cfg.Scoring)
	p, err := perform.New(s, perform.Options{
		Strategy: strategy,
		Policy:   &policy,
		CountIn:  a.cfg.Scoring.CountIn,
		Sink:     sink,
	})
	if err != nil {
		return score.Summary{}, err
	}

	host, closeHost, err := a.openHost(true)
	if err != nil {
		return score.Summary{}, err
	}
	defer closeHost()
	m, err := a.newManager(host)
	if err != nil {
		return score.Summary{}, err
	}
	connect, err := a.connectInstruction(host)
	if err != nil {
		return score.Summary{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	var sum score.Summary
	g.Go(func() error {
		defer cancel()
		fmt.Fprintf(out, "Playing %q: %d notes over %s\n", s.Title, len(s.Notes), s.Length().Round(time.Millisecond))
		m.Send(connect)
		var err error
		sum, err = perform.Run(ctx, p, m.Responses(), tick)
		for _, o := range p.Outcomes() {
			fmt.Fprintf(out, "  %-6s %-6s at %s (best %.1f)\n", o.Note, o.Result, o.Expected, o.Best)
		}
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) && p.Finished() {
		err = nil
	}
	return sum, err
}

// buildSinks wires the configured transports. The logging transport is
// always present.
func (a *app) buildSinks() (transport.Transport, func(), error) {
	t := a.cfg.Transport
	sinks := transport.Multi{transport.NewLoggingTransport()}
	var closers []func() error

	closeAll := func() {
		if err := sinks.Close(); err != nil {
			applog.Warnf("Transport: close: %v", err)
		}
		for _, c := range closers {
			if err := c(); err != nil {
				applog.Warnf("Transport: close: %v", err)
			}
		}
	}

	if t.UDPEnabled {
		sender, err := udp.NewUDPSender(t.UDPTargetAddress)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, sender.Close)
		pub, err := udp.NewUDPPublisher(t.UDPSendInterval, sender, a.cfg.Audio.WindowSize)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		pub.Start()
		sinks = append(sinks, pub)
	}
	if t.WSEnabled {
		ws, err := transport.NewWebSocketTransport(t.WSAddress, nil)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		applog.Infof("Transport: WebSocket clients can connect to ws://%s/ws", ws.Addr())
		sinks = append(sinks, ws)
	}
	return sinks, closeAll, nil
}
