package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/bioleads/internal/export"
	"github.com/sells-group/bioleads/internal/pipeline"
	"github.com/sells-group/bioleads/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score leads in a JSON file and print the tier breakdown",
	Long: `Score every lead in a JSON array with the configured weight profile,
sort by score and write the result.

Examples:
  bioleads score --input leads_deduped.json --output scored.json
  bioleads score --input leads.json --weights aggressive.yaml --output top.csv`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("input", "", "JSON array of leads")
	f.String("output", "leads_scored.json", "output file path")
	f.String("format", "", "output format: json, csv or xlsx (default from extension)")
	f.String("weights", "", "weight profile YAML (overrides config)")
	f.Bool("include-raw", false, "include merged source payloads in tabular exports")
	_ = scoreCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	if w, _ := cmd.Flags().GetString("weights"); w != "" {
		cfg.Scoring.Profile = w
	}
	if err := cfg.Validate("score"); err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	includeRaw, _ := cmd.Flags().GetBool("include-raw")
	format, err := outputFormat(cmd, output)
	if err != nil {
		return err
	}

	engine, err := pipeline.NewEngine(cfg.Scoring)
	if err != nil {
		return err
	}
	leads, err := export.ReadLeadsFile(cmd.Context(), input)
	if err != nil {
		return err
	}

	scored := engine.ScoreBatch(leads)
	if err := export.WriteFile(output, format, scored, export.Options{IncludeRaw: includeRaw}); err != nil {
		return err
	}

	printTierSummary(cmd.OutOrStdout(), scorer.Summarize(scored))
	return nil
}
