package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/satdash/internal/demo"
)

var demoFast bool

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Play the flood-response scenario in the terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(os.Stderr)
		return runDemo(cmd.Context(), cmd.OutOrStdout(), loadDemoConfig(logger).Tick, demoFast, logger)
	},
}

func init() {
	demoCmd.Flags().BoolVar(&demoFast, "fast", false, "advance playback without waiting for the wall clock")
}

// runDemo plays the scenario to completion, printing each dispatched step.
func runDemo(ctx context.Context, w io.Writer, tick time.Duration, fast bool, logger *slog.Logger) error {
	done := make(chan struct{})
	var stopped sync.Once
	var failure error

	player := demo.NewPlayer(demo.FloodScenario(), logger,
		demo.WithTick(tick),
		demo.OnStep(func(_ context.Context, index int, step demo.Step) {
			fmt.Fprintf(w, "[%6.1fs] #%d %s: %s\n", step.At.Seconds(), index, step.Title, step.Description)
			if t := step.Effect.Toast; t != nil {
				fmt.Fprintf(w, "          toast (%s) %s: %s\n", t.Variant, t.Title, t.Description)
			}
			if step.Effect.Sound != "" {
				fmt.Fprintf(w, "          sound %s\n", step.Effect.Sound)
			}
			if step.Effect.Zones != nil {
				fmt.Fprintf(w, "          zones %d active\n", len(step.Effect.Zones))
			}
		}),
		demo.OnError(func(title string, err error) {
			failure = fmt.Errorf("%s: %w", title, err)
		}),
		demo.OnStateChange(func(st demo.Status) {
			if st.State == demo.StateStopped {
				stopped.Do(func() { close(done) })
			}
		}),
	)

	if err := player.Start(ctx); err != nil {
		return err
	}

	if fast {
		for player.Status().State == demo.StatePlaying {
			player.Advance(ctx, tick)
		}
		return failure
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go player.Run(runCtx)

	select {
	case <-done:
	case <-ctx.Done():
		player.Stop()
		return nil
	}
	return failure
}
