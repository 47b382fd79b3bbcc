package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/internal/orchestrator"
	"github.com/jmylchreest/rentwatch/internal/output"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run both strategies over one index page",
	Long: `Discover the listings linked from an index page, extract them with the AI
strategy (first --ai-limit listings) and the manual strategy (all listings),
store the results and print the run result.

A first interrupt (Ctrl-C) stops after the listing in flight and prints the
partial result.

Examples:
  rentwatch scrape
  rentwatch scrape -u "https://wolfnieruchomosci.gratka.pl/nieruchomosci/mieszkania/wynajem"
  rentwatch scrape -m claude-3-5-haiku-20241022 --ai-limit 2 --format yaml`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), scrapeFlagKeys)
	},
	RunE: runScrape,
}

var scrapeFlagKeys = map[string]string{
	"url":           "index_url",
	"model":         "model",
	"ai-limit":      "ai_limit",
	"fetch-mode":    "fetch.mode",
	"timeout":       "fetch.timeout",
	"rate":          "fetch.requests_per_second",
	"store":         "store.driver",
	"dsn":           "store.dsn",
	"api-url":       "store.api_url",
	"telemetry-dir": "telemetry.dir",
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	flags := scrapeCmd.Flags()

	flags.StringP("url", "u", orchestrator.DefaultIndexURL, "index page listing the rentals")
	flags.StringP("model", "m", orchestrator.DefaultModel, "model for selector inference")
	flags.Int("ai-limit", orchestrator.DefaultAILimit, "listings visited by the AI strategy (-1 = all)")

	flags.String("fetch-mode", "static", "fetch mode: static, dynamic, auto")
	flags.Duration("timeout", 10*time.Second, "per-request timeout")
	flags.Float64("rate", 0, "max static requests per second (0 = unlimited)")

	flags.String("store", "memory", "listing store: memory, postgres, remote")
	flags.String("dsn", "", "postgres connection string")
	flags.String("api-url", "", "rentwatch API base URL for --store remote")
	flags.String("telemetry-dir", "./telemetry", "directory for the per-strategy CSV logs")

	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml, text")
}

func runScrape(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	// The first signal asks the run to stop between listings; the context
	// stays alive so the listing in flight can be stored.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go stopOnFirstSignal(ctx, cancel, a.orch.RequestStop, runCtx.Done())

	start := time.Now()
	res := a.orch.Run(runCtx, viper.GetString("index_url"), viper.GetString("model"))
	logger.Info("scrape finished",
		"status", res.Status,
		"listings", len(res.Combined),
		"partial", res.Partial,
		"duration", time.Since(start).Round(time.Millisecond))

	w, closeOut, err := openOutput(mustString(cmd, "output"))
	if err != nil {
		return err
	}
	defer closeOut()

	p, err := output.New(w, format)
	if err != nil {
		return err
	}
	if err := p.PrintRun(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	if res.Status != orchestrator.StatusSuccess {
		return fmt.Errorf("run %s: %s", res.Status, res.Error)
	}
	return nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			logger.Warn("close output file", "path", path, "error", err)
		}
	}, nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// stopOnFirstSignal calls stop once sigCtx is done and then release, which
// unregisters the signal handler so a second signal terminates the process.
// It returns without doing anything when done closes first.
func stopOnFirstSignal(sigCtx context.Context, release context.CancelFunc, stop func(), done <-chan struct{}) {
	select {
	case <-sigCtx.Done():
		stop()
		release()
	case <-done:
	}
}
