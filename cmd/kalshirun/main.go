package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	appName = "kalshirun"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Prediction-market scoring engine",
		Version: version,
		Long: `kalshirun crawls open prediction markets, scores their taker and maker
potential from quotes and order books, and serves the results over HTTP.`,
	}
	rootCmd.PersistentFlags().String("config", "config/app.yaml", "Path to the application config file")

	// Accept snake_case flag spellings from older scripts.
	rootCmd.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	crawlCmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a single market sweep and exit",
		Long:  "Fetches every open market, scores and persists it, and runs deep scans for markets crossing the threshold.",
		RunE:  runCrawl,
	}

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the crawl loop on its configured interval",
		Long:  "Sweeps the market universe on a fixed interval until interrupted. Overlapping sweeps are skipped, not queued.",
		RunE:  runSchedule,
	}
	scheduleCmd.Flags().Int("interval", 0, "Override the sweep interval in seconds")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl loop and the HTTP API together",
		Long:  "Runs the scheduled crawler alongside the read-only HTTP surface with /health, /status, and /metrics.",
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", "", "Override the HTTP listen address")

	scoreCmd := &cobra.Command{
		Use:   "score <ticker>",
		Short: "Score one market ad hoc and print the result",
		Long:  "Fetches a single market and its order book straight from the exchange, scores both paths, and prints JSON. No database required.",
		Args:  cobra.ExactArgs(1),
		RunE:  runScore,
	}
	scoreCmd.Flags().Int("depth", 0, "Order book depth to request (0 = exchange default)")

	topCmd := &cobra.Command{
		Use:   "top",
		Short: "Print the highest-scored persisted markets",
		RunE:  runTop,
	}
	topCmd.Flags().Int("limit", 25, "Number of markets to print")

	watchCmd := &cobra.Command{
		Use:   "watch <ticker> [ticker...]",
		Short: "Stream live order books and rescore on every change",
		Long:  "Subscribes to the exchange orderbook channel for the given markets and prints an updated order-book score on every ladder change. No database required.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWatch,
	}
	watchCmd.Flags().String("ws-url", "wss://api.elections.kalshi.com/trade-api/ws/v2", "Exchange websocket URL")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(watchCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
