package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/bioleads/internal/export"
	"github.com/sells-group/bioleads/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Convert scored leads to CSV, Excel or JSON",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.String("input", "", "JSON array of scored leads")
	f.String("output", "", "output file path (default from config)")
	f.String("format", "", "output format: json, csv or xlsx (default from extension)")
	f.String("tier", "", "only export leads in this tier")
	f.Bool("include-raw", false, "include merged source payloads in tabular exports")
	_ = exportCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate("export"); err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = cfg.Export.Output
	}
	format, err := outputFormat(cmd, output)
	if err != nil {
		return err
	}
	includeRaw, _ := cmd.Flags().GetBool("include-raw")

	leads, err := export.ReadLeadsFile(cmd.Context(), input)
	if err != nil {
		return err
	}
	if tier, _ := cmd.Flags().GetString("tier"); tier != "" {
		leads = filterTier(leads, model.Tier(tier))
	}

	if err := export.WriteFile(output, format, leads, export.Options{IncludeRaw: includeRaw}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d leads to %s (%s)\n", len(leads), output, format)
	return nil
}

func filterTier(leads []*model.LeadRecord, tier model.Tier) []*model.LeadRecord {
	out := make([]*model.LeadRecord, 0, len(leads))
	for _, l := range leads {
		if l.Tier == tier {
			out = append(out, l)
		}
	}
	return out
}
