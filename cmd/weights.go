package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Print the effective scoring weights and validate them",
	RunE:  runWeights,
}

func init() {
	weightsCmd.Flags().String("profile", "", "weight profile YAML (overrides config)")
	rootCmd.AddCommand(weightsCmd)
}

func runWeights(cmd *cobra.Command, _ []string) error {
	if p, _ := cmd.Flags().GetString("profile"); p != "" {
		cfg.Scoring.Profile = p
	}
	if err := cfg.Validate("weights"); err != nil {
		return err
	}

	w, err := cfg.Scoring.Weights()
	if err != nil {
		return err
	}
	out, err := w.YAML()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))

	if err := w.Validate(); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "# invalid: %v\n", err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# valid: weights sum to %.2f\n", w.WeightSum())
	return nil
}
