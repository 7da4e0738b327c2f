package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	exportjob "github.com/kestrelweb/sitecrawler/internal/export"
	"github.com/kestrelweb/sitecrawler/internal/registry"
)

var faqSearchQuery string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Emit JSONL/CSV from the registry",
	Long: `export reads the configured registry and writes pages.jsonl and
faq_items.jsonl (JSON Lines) plus edges.csv and assets.csv into the
configured export directory. Pass --faq-query to also write
faq_search.jsonl with the FTS5-ranked matches for that query.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&faqSearchQuery, "faq-query", "", "also export FTS5 search results for this FAQ query")
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := registry.Open(cfg.Output.RegistryPath)
	if err != nil {
		return fmt.Errorf("open registry %s: %w", cfg.Output.RegistryPath, err)
	}
	defer store.Close()

	res, err := exportjob.Run(store, cfg.Output.ExportPath)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "exported %d pages, %d edges, %d assets, %d faq items to %s\n",
		res.Pages, res.Edges, res.Assets, res.FAQItems, cfg.Output.ExportPath)

	if faqSearchQuery != "" {
		n, err := exportjob.RunFAQSearch(store, cfg.Output.ExportPath, faqSearchQuery, 20)
		if err != nil {
			return fmt.Errorf("faq search export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "faq search %q matched %d items\n", faqSearchQuery, n)
	}
	return nil
}
