// Package cmd defines and implements the CLI commands for the mailharvest
// executable.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jfaulkner/mailharvest/internal/config"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailharvest",
		Short: "Discover and verify publicly listed contact emails",
		Long: `mailharvest crawls a model-hosting site's user directory, follows
profiles, model pages, personal websites, and linked GitHub accounts,
and persists every newly discovered contact address with provenance.
It can run as an HTTP service or perform one-shot crawls and address
verification from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (optional, env vars apply regardless)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newVerifyCmd())
	return cmd
}

func loadConfig() (config.Config, error) {
	return config.Load(cfgFile)
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
