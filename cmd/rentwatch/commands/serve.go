package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/rentwatch/internal/api"
	"github.com/jmylchreest/rentwatch/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the listings API and scrape controls",
	Long: `Start the HTTP API.

Routes:
  GET    /listings[?url=]             list listings, optionally by URL
  GET    /listings/{id}               one listing
  POST   /listings                    create (409 when the URL exists)
  PUT    /listings/{id}               replace
  POST   /scrape                      run both strategies {"url","model"}
  GET    /scrape/history              completed runs
  GET    /scrape/counters/{strategy}  processed counter (ai, manual)
  DELETE /scrape/counters/{strategy}  reset the counter
  POST   /scrape/stop                 stop the current run, refuse new ones
  DELETE /scrape/stop                 accept runs again
  GET    /healthz, /metrics`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), serveFlagKeys)
	},
	RunE: runServe,
}

var serveFlagKeys = map[string]string{
	"listen":        "server.listen",
	"fetch-mode":    "fetch.mode",
	"timeout":       "fetch.timeout",
	"store":         "store.driver",
	"dsn":           "store.dsn",
	"api-url":       "store.api_url",
	"telemetry-dir": "telemetry.dir",
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.StringP("listen", "l", ":8001", "listen address")
	flags.String("fetch-mode", "static", "fetch mode: static, dynamic, auto")
	flags.Duration("timeout", 10*time.Second, "per-request timeout")
	flags.String("store", "memory", "listing store: memory, postgres, remote")
	flags.String("dsn", "", "postgres connection string")
	flags.String("api-url", "", "upstream rentwatch API for --store remote")
	flags.String("telemetry-dir", "./telemetry", "directory for the per-strategy CSV logs")
}

func runServe(cmd *cobra.Command, args []string) error {
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

	srv := api.New(api.Options{
		Store:    a.store,
		Runner:   a.orch,
		Gatherer: a.registry,
	})

	// Runs in flight end early once shutdown starts.
	go func() {
		<-ctx.Done()
		a.orch.RequestStop()
	}()

	return srv.ListenAndServe(ctx, cfg.Server.Listen, cfg.Server.ShutdownTimeout)
}
