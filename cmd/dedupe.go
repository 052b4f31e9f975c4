package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/bioleads/internal/export"
	"github.com/sells-group/bioleads/internal/pipeline"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Merge duplicate leads in a JSON file",
	RunE:  runDedupe,
}

func init() {
	f := dedupeCmd.Flags()
	f.String("input", "", "JSON array of leads")
	f.String("output", "leads_deduped.json", "output file path")
	f.String("format", "", "output format: json, csv or xlsx (default from extension)")
	f.Int("name-threshold", 0, "fuzzy name threshold 0-100 (0=use config)")
	f.Bool("no-fuzzy", false, "match names exactly instead of fuzzily (email and ORCID matching still apply)")
	_ = dedupeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(dedupeCmd)
}

func runDedupe(cmd *cobra.Command, _ []string) error {
	if n, _ := cmd.Flags().GetInt("name-threshold"); n > 0 {
		cfg.Linkage.NameThreshold = n
	}
	if noFuzzy, _ := cmd.Flags().GetBool("no-fuzzy"); noFuzzy {
		cfg.Linkage.Fuzzy = false
	}
	if err := cfg.Validate("dedupe"); err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	format, err := outputFormat(cmd, output)
	if err != nil {
		return err
	}

	leads, err := export.ReadLeadsFile(cmd.Context(), input)
	if err != nil {
		return err
	}
	out := pipeline.NewDeduplicator(cfg.Linkage).Deduplicate(leads)
	if err := export.WriteFile(output, format, out, export.Options{}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d leads in, %d out (%d duplicates removed)\n",
		len(leads), len(out), len(leads)-len(out))
	return nil
}
