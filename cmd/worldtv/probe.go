package main

import (
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/spf13/cobra"

	"github.com/voyagen/worldtv/internal/models"
	"github.com/voyagen/worldtv/internal/player"
)

func newProbeCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "probe <stream-url>",
		Short: "Open a stream in a player session and print its state transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			snaps := make(chan player.Snapshot, 32)
			sess := player.NewSession(player.Options{
				Engines: &player.HLSFactory{UserAgent: cfg.UserAgent, Logger: logger},
				Sink:    &player.VirtualSink{},
				Logger:  logger,
				OnChange: func(s player.Snapshot) {
					select {
					case snaps <- s:
					default:
					}
				},
			})
			defer sess.Close()

			url := args[0]
			ch := models.Channel{ID: "probe-0", Name: path.Base(url), URL: url}
			if err := sess.Open(ch); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			deadline := time.After(timeout)
			last := ""
			for {
				select {
				case s := <-snaps:
					line := s.State.String()
					if s.Buffering {
						line += " (buffering)"
					}
					if s.Reason != "" {
						line += ": " + s.Reason
					}
					if line != last {
						fmt.Fprintf(out, "%s  %-8s retries=%d %s\n", time.Now().Format("15:04:05.000"), s.Strategy, s.Retries, line)
						last = line
					}
					switch {
					case s.State == player.StatePlaying && !s.Buffering:
						return nil
					case s.Terminal:
						return errors.New(s.Reason)
					}
				case <-deadline:
					return fmt.Errorf("no steady state after %s", timeout)
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				}
			}
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	return cmd
}
