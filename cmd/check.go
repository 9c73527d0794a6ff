package cmd

import (
	"github.com/spf13/cobra"
)

// newCheckCmd validates the numbers given as arguments one request at a time.
func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check NUMBER...",
		Short: "Validate VAT numbers one by one",
		Long: `Validates each VAT number with its own request. Numbers carry their
two-letter member state prefix, e.g. DE123456789. Spaces, dots and dashes are
ignored.`,
		Example: "  vies check DE123456789 FR12345678901 -f csv -o results.csv",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, opts, args, func(int) int { return 0 })
		},
	}
}
