// Package cmd provides the command-line interface for unchained.
//
// Configuration System:
//
//	The CLI reads configuration from several sources, highest priority first:
//	1. Command-line flags (--config, --address, etc.)
//	2. UNCHAINED_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (UNCHAINED_SERVER_ADDRESS, etc.)
//	4. Configuration files (.unchained.yml)
//
//	A .env file in the working directory is loaded into the environment
//	before any of the above are read.
//
// Environment Variables:
//
//	UNCHAINED_CONFIG_FILE: Path to custom configuration file
//	UNCHAINED_SERVER_ADDRESS: Override listen address
//	UNCHAINED_SERVER_THREADS: Override worker count
//	UNCHAINED_DEVELOPMENT_WATCH: Re-render pages when templates change
//	And the rest of the UNCHAINED_<SECTION>_<OPTION> keys
package cmd

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/unchained/internal/config"
	"github.com/conneroisu/unchained/internal/logging"
	"github.com/conneroisu/unchained/internal/templates"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "unchained",
	Short: "Serve sites built from {* *} templates",
	Long: `unchained renders HTML templates written with {* *} operations and
serves them from a small multi-threaded HTTP server.

Pages, static files and the not-found page are declared in a site
manifest (site.yml by default):

  context: {current_year: 2024}
  pages:
    - path: /
      template: templates/index.html
  files: ["/images/*"]
  not_found: templates/404.html

Quick Start:
  unchained serve                     Serve the site in the current directory
  unchained serve --watch             Re-render pages when templates change
  unchained render page.html          Print a rendered template
  unchained routes                    List the routes of the manifest`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .unchained.yml, can also use UNCHAINED_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", config.DefaultLogFormat, "log format (text, json)")
	rootCmd.PersistentFlags().StringP("root", "r", config.DefaultRoot, "site root: templates and files are read relative to it")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("site.root", rootCmd.PersistentFlags().Lookup("root"))
}

// initConfig initializes the configuration system.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. UNCHAINED_CONFIG_FILE environment variable
//  3. .unchained.yml in the current directory
func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load()

	explicit := cfgFile
	if explicit == "" {
		explicit = os.Getenv("UNCHAINED_CONFIG_FILE")
	}

	if explicit != "" {
		viper.SetConfigFile(explicit)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".unchained")
	}

	if err := config.BindEnv(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	// Without an explicit file, a missing .unchained.yml just means defaults.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if explicit != "" {
		fmt.Fprintln(os.Stderr, "Warning: could not read config file:", err)
	}
}

// loadConfig loads the configuration and builds the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()

	return cfg, logging.NewLogger(lc), nil
}

// renderOptions returns the template options for cfg, reading from fsys.
func renderOptions(cfg *config.Config, fsys fs.FS) *templates.RenderOptions {
	return templates.DefaultOptions().
		WithMarkers(cfg.Templates.Opening, cfg.Templates.Closing).
		WithFS(fsys)
}
