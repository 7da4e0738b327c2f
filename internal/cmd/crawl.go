package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kestrelweb/sitecrawler/internal/crawler"
	"github.com/kestrelweb/sitecrawler/internal/fetch"
	"github.com/kestrelweb/sitecrawler/internal/registry"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run the crawl to completion or until interrupted",
	Long: `crawl expands the configured seed sitemap into the frontier (with no
seed_sitemap_url configured, it resumes the registry's pending work
instead) and drives the worker pool until the frontier drains or the
process receives an interrupt.

Exit code is 0 on a clean finish (DONE), 130 if interrupted (ABORTED),
and non-zero on a fatal configuration or registry error.`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().Bool("show-config", false, "print the resolved configuration as YAML and exit")
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	showConfig, _ := cmd.Flags().GetBool("show-config")
	if showConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output.RegistryPath), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	store, err := registry.Open(cfg.Output.RegistryPath)
	if err != nil {
		return fmt.Errorf("open registry %s: %w", cfg.Output.RegistryPath, err)
	}
	defer store.Close()

	artifacts, err := fetch.NewArtifactStore(cfg.Output.ArtifactsRoot)
	if err != nil {
		return fmt.Errorf("open artifact store %s: %w", cfg.Output.ArtifactsRoot, err)
	}

	if cfg.SeedSitemapURL == "" {
		counts, err := store.Counts()
		if err != nil {
			return fmt.Errorf("check registry for resumable work: %w", err)
		}
		if counts.Pending == 0 && counts.Fetching == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no seed_sitemap_url configured and no pending work in registry, nothing to crawl")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "resuming crawl from registry: %s\n", cfg.Output.RegistryPath)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := crawler.New(cfg, store, artifacts)
	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	stats := engine.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "crawl finished: state=%s pages_crawled=%d errors=%d duration=%s\n",
		engine.State(), stats.PagesCrawled, stats.ErrorCount, stats.Duration)

	if engine.State() == crawler.StateAborted {
		os.Exit(130)
	}
	return nil
}
