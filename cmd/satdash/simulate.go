package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/satdash/internal/catalog"
	"github.com/star/satdash/internal/orbit"
	"github.com/star/satdash/internal/tracker"
)

var (
	simTicks    int
	simInterval time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the tracker without a server and print published snapshots as JSON lines.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(os.Stderr)
		cfg, ttl := loadTrackerConfig(logger)
		if simInterval > 0 {
			cfg.Interval = simInterval
		}
		return runSimulate(cmd.Context(), cmd.OutOrStdout(), cfg, ttl, simTicks, logger)
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 10, "number of tracker ticks to run (0 runs until interrupted)")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 0, "tick interval (default from SATDASH_TRACKER_INTERVAL_MS)")
}

// jsonLinesSink writes each snapshot as one JSON line.
type jsonLinesSink struct {
	enc *json.Encoder
}

func (s *jsonLinesSink) Name() string { return "stdout" }

func (s *jsonLinesSink) Publish(_ context.Context, snap *tracker.Snapshot) error {
	return s.enc.Encode(snap)
}

func runSimulate(ctx context.Context, w io.Writer, cfg tracker.Config, ttl time.Duration, ticks int, logger *slog.Logger) error {
	cat := catalog.New(catalog.DefaultSatellites())
	tr := tracker.New(cfg, cat, orbit.NewPositionCache(ttl), logger,
		tracker.WithSinks(&jsonLinesSink{enc: json.NewEncoder(w)}))

	if ticks <= 0 {
		tr.Run(ctx)
		return nil
	}

	ticker := time.NewTicker(tr.Config().Interval)
	defer ticker.Stop()

	published := 0
	for i := 0; i < ticks; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		if tr.Tick(ctx) {
			published++
		}
	}
	logger.Info("simulation finished", "ticks", ticks, "published", published)
	return nil
}
