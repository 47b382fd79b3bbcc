package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/rentwatch/internal/output"
	"github.com/jmylchreest/rentwatch/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := mustString(cmd, "format")
		if format == "" || format == string(output.FormatText) {
			fmt.Println(version.Full())
			return nil
		}
		f, err := output.ParseFormat(format)
		if err != nil {
			return err
		}
		p, err := output.New(os.Stdout, f)
		if err != nil {
			return err
		}
		return p.PrintValue(version.Get())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().String("format", "text", "output format: text, json, yaml")
}
