package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yugeshweb/AquaFlow/internal/config"
	"github.com/yugeshweb/AquaFlow/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "aquaflow",
	Short: "AquaFlow flow meter and pump controller",
	Long: `AquaFlow counts pulses from two flow sensors, publishes flow rates to Redis
or MQTT once per sampling window and switches the pump relay from the ON/OFF/AUTO
command stored next to them.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	config.RegisterFlags(rootCmd.PersistentFlags())
}

// loadConfig builds the configuration from the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(viper.New(), cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) (zerolog.Logger, error) {
	return logger.New(w, logger.Options{
		Level:   cfg.Log.Level,
		Service: logger.IsService(),
		JSON:    cfg.Log.JSON,
	})
}
