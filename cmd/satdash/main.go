// Command satdash serves the satellite-tracking dashboard.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile  string
	logLevel string
)

// rootCmd runs the server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "satdash",
	Short: "Satellite-tracking dashboard with risk zones and a scripted disaster demo.",
	Long: `satdash computes simulated satellite positions, publishes them to the ` +
		`embedded web dashboard over Server-Sent Events and plays a scripted ` +
		`flood-response demo that drives toasts, sounds and risk zones.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), newLogger(os.Stdout))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file with SATDASH_* settings")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides SATDASH_LOG_LEVEL")

	rootCmd.AddCommand(serveCmd, simulateCmd, demoCmd)
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func newLogger(w *os.File) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))
}

// parseLevel resolves the flag, then SATDASH_LOG_LEVEL, defaulting to info.
func parseLevel(flag string) slog.Level {
	v := flag
	if v == "" {
		v = os.Getenv("SATDASH_LOG_LEVEL")
	}
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
