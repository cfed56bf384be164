// Package cmd implements the command line interface for the application.
package cmd

import (
	"fmt"
	"os"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/whit3rabbit/jvmmixer/internal/config"
)

var (
	cfgFile string         // Variable to hold the config file path from the flag
	cfg     *config.Config // Global variable to hold the loaded configuration

	// Flag variables mapped to config fields for override
	silentMode bool // -> cfg.Silent
	verbose    bool // -> cfg.DebugMode
	noColor    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "go-jvm-obfuscator",
	Short: "A CLI tool to obfuscate compiled JVM archives.",
	Long: `go-jvm-obfuscator hides the call graph of a JAR behind encrypted
invokedynamic call sites and can lay the archive out so that common
decompilers and unzip tools fail to read it while the JVM still runs it.`,
	SilenceErrors: true,
	// Config is loaded once, before any subcommand runs.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg != nil {
			return nil
		}
		loadedCfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		cfg = loadedCfg

		// Apply command-line flag overrides *after* loading config file
		applyFlagOverrides(cfg, cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		switch {
		case cfg.DebugMode:
			log.SetLevel(log.DebugLevel)
		case cfg.Silent:
			log.SetLevel(log.WarnLevel)
		default:
			log.SetLevel(log.InfoLevel)
		}
		color.NoColor = color.NoColor || noColor
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// applyFlagOverrides applies persistent flag values to the config struct.
// Only overrides if the flag was explicitly set by the user via cmd.Flags().Changed().
func applyFlagOverrides(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("silent") {
		cfg.Silent = silentMode
	}
	if cmd.Flags().Changed("verbose") {
		cfg.DebugMode = verbose
	}
	if cmd.Flags().Changed("lib") {
		cfg.Libraries = append(cfg.Libraries, libraries...)
	}
	if cmd.Flags().Changed("crasher") {
		cfg.Obfuscation.Crasher.Enabled = crasher
	}
	if cmd.Flags().Changed("indirection") {
		cfg.Obfuscation.Indirection.Enabled = indirection
	}
	if cmd.Flags().Changed("shuffle") {
		cfg.Obfuscation.Shuffle.Enabled = shuffle
	}
	// An explicit seed beats a phrase from the config file; a phrase given
	// on the command line still wins.
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
		cfg.SeedPhrase = ""
	}
	if cmd.Flags().Changed("seed-phrase") {
		cfg.SeedPhrase = seedPhrase
	}
	if cmd.Flags().Changed("compression") {
		cfg.Archive.Compression = compression
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihandler.Default)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&silentMode, "silent", "s", false, "Suppress informational output (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Enable debug logging (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colorized output")
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}
