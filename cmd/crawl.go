package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jfaulkner/mailharvest/internal/crawl"
	"github.com/jfaulkner/mailharvest/internal/server"
)

func newCrawlCmd() *cobra.Command {
	var (
		emailLimit        int
		listingPages      int
		modelPagesPerUser int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl and print its summary",
		Long: `Performs a single discovery run in the foreground and prints the run
summary as JSON. Unset flags fall back to the configured defaults.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := server.Build(cfg)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer app.Close() //nolint:errcheck // process exits right after

			params := crawl.Params{
				EmailLimit:        emailLimit,
				ListingPages:      listingPages,
				ModelPagesPerUser: modelPagesPerUser,
			}
			if params.EmailLimit <= 0 {
				params.EmailLimit = cfg.Crawl.EmailLimit
			}
			if params.ListingPages <= 0 {
				params.ListingPages = cfg.Crawl.ListingPages
			}
			if params.ModelPagesPerUser < 0 {
				params.ModelPagesPerUser = cfg.Crawl.ModelPagesPerUser
			}

			summary, err := app.Coordinator().Run(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("crawl run: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().IntVar(&emailLimit, "limit", 0, "stop after this many new addresses (0 uses config)")
	cmd.Flags().IntVar(&listingPages, "pages", 0, "directory listing pages to walk (0 uses config)")
	cmd.Flags().IntVar(&modelPagesPerUser, "model-pages", -1, "model listing pages per user (-1 uses config)")
	return cmd
}
