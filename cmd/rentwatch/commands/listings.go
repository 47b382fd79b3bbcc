package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/rentwatch/internal/output"
	"github.com/jmylchreest/rentwatch/internal/store"
)

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Print stored listings",
	Long: `Print the listings held by the configured store. Useful with
--store postgres or --store remote; the memory store is empty in a new process.

Examples:
  rentwatch listings --store remote --api-url http://localhost:8001 --format text
  rentwatch listings --store postgres --dsn postgres://localhost/rentwatch --url https://...`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), map[string]string{
			"store":   "store.driver",
			"dsn":     "store.dsn",
			"api-url": "store.api_url",
		})
	},
	RunE: runListings,
}

func init() {
	rootCmd.AddCommand(listingsCmd)

	flags := listingsCmd.Flags()
	flags.String("store", "memory", "listing store: memory, postgres, remote")
	flags.String("dsn", "", "postgres connection string")
	flags.String("api-url", "", "rentwatch API base URL for --store remote")
	flags.String("url", "", "only the listing with this URL")
	flags.String("format", "text", "output format: json, jsonl, yaml, text")
}

func runListings(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer st.Close()

	found, err := st.List(ctx, store.Filter{URL: mustString(cmd, "url")})
	if err != nil {
		return err
	}

	p, err := output.New(os.Stdout, format)
	if err != nil {
		return err
	}
	return p.PrintListings(found)
}
