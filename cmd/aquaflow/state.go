package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yugeshweb/AquaFlow/internal/gpio"
	"github.com/yugeshweb/AquaFlow/internal/pulse"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current flow sensor line levels and exit",
	Long: `Reads the raw level of both flow sensor inputs once. The relay line is not
claimed, so a running pump is left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		noop := func() {}
		inputs, err := gpio.NewRealInputs(cfg.GPIO.Chip, 0,
			gpio.Input{Pin: cfg.GPIO.PinFlow1, OnEdge: noop},
			gpio.Input{Pin: cfg.GPIO.PinFlow2, OnEdge: noop},
		)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer inputs.Close()

		levels, err := inputs.Levels()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatLevels(levels))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
}

// formatLevels renders input levels in channel order.
func formatLevels(levels []int) string {
	s := ""
	for i, ch := range pulse.Channels {
		if i >= len(levels) {
			break
		}
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %s", ch, levelString(levels[i]))
	}
	return s
}

func levelString(v int) string {
	if v == 0 {
		return "LOW"
	}
	return "HIGH"
}
