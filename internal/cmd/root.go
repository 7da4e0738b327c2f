// Package cmd provides the command-line interface for the crawler.
// It handles command parsing, configuration loading, and dispatch to
// the crawl, export, and validate subcommands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kestrelweb/sitecrawler/internal/config"
	"github.com/kestrelweb/sitecrawler/internal/logging"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd is the base command; it carries no RunE of its own, since the
// crawler's three operations (crawl/export/validate) are all explicit
// subcommands per the external CLI contract. Its PersistentPreRunE sets
// up the default slog logger before any subcommand runs.
var rootCmd = &cobra.Command{
	Use:   "sitecrawler",
	Short: "A site-scoped, sitemap-rooted web crawler",
	Long: `sitecrawler discovers pages from a sitemap, follows in-scope links to a
configurable depth, and persists pages, link edges, assets, and FAQ
items into an embedded registry.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information shown by --version.
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sitecrawler.yml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "path to a size-rotating log file (in addition to stdout)")
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(validateCmd)
}

// setupLogging builds the process-wide slog default from the
// log-level/log-file flags and their SITECRAWL_LOG_LEVEL/SITECRAWL_LOG_FILE
// environment equivalents, wiring the JSON-handler-plus-rotating-file
// logger before any subcommand emits a log line. It uses a dedicated
// viper instance rather than newViper so validate's UnmarshalExact never
// sees log_level/log_file as unknown configuration keys.
func setupLogging(cmd *cobra.Command) error {
	level, _ := cmd.Flags().GetString("log-level")
	file, _ := cmd.Flags().GetString("log-file")

	lv := viper.New()
	lv.SetDefault("log_level", level)
	lv.SetDefault("log_file", file)
	lv.AutomaticEnv()
	lv.SetEnvPrefix("SITECRAWL")
	lv.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	logCfg := logging.Config{
		Level:      logging.ParseLevel(lv.GetString("log_level")),
		FilePath:   lv.GetString("log_file"),
		MaxSize:    100,
		MaxBackups: 5,
		Console:    true,
	}
	if err := logging.SetDefault(logCfg); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	return nil
}

// newViper builds a viper instance layering, in ascending priority:
// defaults < config file < SITECRAWL_-prefixed environment variables.
// No command-line flags are bound into this instance.
func newViper() *viper.Viper {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("sitecrawler")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SITECRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "using config file: %s\n", v.ConfigFileUsed())
	}

	return v
}

// loadConfig loads a CrawlConfig from defaults, an optional config
// file, and environment variables, without rejecting unknown keys
// (that strictness is reserved for validate, per spec.md §6).
func loadConfig() (*config.CrawlConfig, error) {
	v := newViper()
	cfg := config.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LoadHeadersFromEnv()
	return cfg, nil
}
