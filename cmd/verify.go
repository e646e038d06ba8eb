package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfaulkner/mailharvest/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	var (
		probe      bool
		requireCom bool
	)

	cmd := &cobra.Command{
		Use:   "verify <address>",
		Short: "Classify an email address as valid, invalid, or uncertain",
		Long: `Runs the verification ladder against one address: syntax, TLD policy,
no-reply and disposable patterns, MX resolution, and optionally a live
SMTP mailbox probe. Only a definitive probe accept yields "valid".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			verifier := verify.New(
				verify.NewNetResolver(time.Duration(cfg.Verify.MXTimeoutSeconds)*time.Second),
				verify.NewSMTPProber(
					cfg.Verify.HeloDomain,
					cfg.Verify.ProbeFrom,
					time.Duration(cfg.Verify.SMTPTimeoutSeconds)*time.Second,
				),
			)

			result := verifier.Verify(cmd.Context(), args[0], verify.Options{
				RequireDotCom: requireCom,
				Probe:         probe,
			})

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"email":   args[0],
				"status":  result.Status,
				"reasons": result.Reasons,
			})
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "attempt a live SMTP mailbox probe")
	cmd.Flags().BoolVar(&requireCom, "require-com", false, "treat non-.com domains as invalid")
	return cmd
}
