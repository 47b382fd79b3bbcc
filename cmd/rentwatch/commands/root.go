// Package commands implements the CLI commands for rentwatch.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/rentwatch/internal/config"
	"github.com/jmylchreest/rentwatch/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "rentwatch",
	Short: "Compare AI-inferred and fixed-selector scraping of rental listings",
	Long: `Rentwatch scrapes rental listings from an index page with two strategies
and records how each performs.

The manual strategy reads the page's embedded Nuxt payload and fixed CSS
selectors. The AI strategy asks an LLM for CSS selectors and applies them.
Both write to the same listing store; timing and memory telemetry for each
strategy is appended to CSV logs.

Examples:
  # One run against the default index page
  rentwatch scrape

  # Pick the model and print a summary
  rentwatch scrape -m gpt-4o --format text

  # Persist to Postgres and expose the API
  rentwatch serve --store postgres --dsn postgres://localhost/rentwatch

  # Scrape into a running rentwatch API
  rentwatch scrape --store remote --api-url http://localhost:8001`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Debug: viper.GetBool("debug"),
			Quiet: viper.GetBool("quiet"),
			JSON:  viper.GetBool("log_json"),
		})
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default ./.rentwatch.yaml or $HOME/.rentwatch.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "only log errors")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("env_file", rootCmd.PersistentFlags().Lookup("env-file"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	if err := config.LoadDotEnv(viper.GetString("env_file")); err != nil {
		logError("%v", err)
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".rentwatch")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logError("read config: %v", err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// bindFlags binds a command's flags to config keys. Binding happens when the
// command runs so commands sharing a key do not overwrite each other.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return nil
}

// loadConfig resolves the configuration for the running command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		logger.Error("configuration rejected", "error", err)
		return nil, err
	}
	return cfg, nil
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
