package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/itohio/padscan/pkg/config"
)

var (
	log zerolog.Logger
	cfg *config.Config

	rootOpts = struct {
		Config   string
		LogLevel string
		Port     string
	}{}
)

var rootCmd = &cobra.Command{
	Use:   "padscan",
	Short: "padscan is a host tool for the drum module's pad scanner",
	Long: `padscan inspects, simulates and monitors the analog pad scan of the drum module.
It prints the wiring schedule, runs the scanner against a simulated front end or a
Linux bench rig, and reads the diagnostic stream from the module's serial console.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootOpts.Config, "config", "c", "config.yaml", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&rootOpts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&rootOpts.Port, "port", "p", "", "serial port override (e.g., COM3 or /dev/ttyACM0)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "padscan: %s\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(rootOpts.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", rootOpts.LogLevel, err)
	}
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	log = zerolog.New(cw).Level(level).With().Timestamp().Logger()

	cfg, err = config.Load(rootOpts.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if rootOpts.Port != "" {
		cfg.Serial.Port = rootOpts.Port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Debug().Str("config", rootOpts.Config).Str("wiring", cfg.Wiring.Name).Msg("configuration loaded")
	return nil
}
