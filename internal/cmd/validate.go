package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelweb/sitecrawler/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and type-check the configuration",
	Long: `validate loads the configuration the same way crawl and export do,
but with strict unmarshaling: any YAML key that does not correspond to
a known configuration field is rejected. Exits 0 if the configuration
is valid.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, _ []string) error {
	v := newViper()

	cfg := config.DefaultConfig()
	if err := v.UnmarshalExact(cfg); err != nil {
		return fmt.Errorf("configuration has unknown or malformed keys: %w", err)
	}
	cfg.LoadHeadersFromEnv()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
	return nil
}
