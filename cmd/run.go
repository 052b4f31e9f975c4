package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/bioleads/internal/export"
	"github.com/sells-group/bioleads/internal/model"
	"github.com/sells-group/bioleads/internal/pipeline"
	"github.com/sells-group/bioleads/internal/scorer"
	"github.com/sells-group/bioleads/internal/sources"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline and export scored leads",
	Long: `Fetch leads from every enabled source, merge duplicates, enrich
institutions and score each lead, then write the ranked result.

Examples:
  # Default queries from bioleads.yaml, CSV output
  bioleads run

  # Custom queries to Excel, skipping enrichment
  bioleads run --queries "organoid,spheroid" --output leads.xlsx --skip-enrich`,
	RunE: runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.String("queries", "", "comma-separated search terms (overrides config)")
	f.Int("max-results", 0, "maximum results per source and term (0=use config)")
	f.String("sources", "", "comma-separated sources to query (overrides config)")
	f.String("output", "", "output file path (default from config)")
	f.String("format", "", "output format: json, csv or xlsx (default from extension)")
	f.Bool("skip-enrich", false, "skip company enrichment")
	f.Bool("include-raw", false, "include merged source payloads in tabular exports")
	rootCmd.AddCommand(runCmd)
}

// applySourceFlags overlays the shared fetch flags on the loaded config.
func applySourceFlags(cmd *cobra.Command) {
	if q, _ := cmd.Flags().GetString("queries"); q != "" {
		cfg.Sources.Queries = splitList(q)
	}
	if s, _ := cmd.Flags().GetString("sources"); s != "" {
		cfg.Sources.Enabled = splitList(s)
	}
	if n, _ := cmd.Flags().GetInt("max-results"); n > 0 {
		cfg.Sources.MaxResults = n
	}
}

func sourceQuery() sources.Query {
	return sources.Query{Terms: cfg.Sources.Queries, MaxResults: cfg.Sources.MaxResults}
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applySourceFlags(cmd)
	if skip, _ := cmd.Flags().GetBool("skip-enrich"); skip {
		cfg.Enrich.Enabled = false
	}
	if err := cfg.Validate("run"); err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = cfg.Export.Output
	}
	format, err := outputFormat(cmd, output)
	if err != nil {
		return err
	}
	includeRaw, _ := cmd.Flags().GetBool("include-raw")

	p, err := pipeline.FromConfig(cfg)
	if err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "run"))
	log.Info("starting pipeline",
		zap.Strings("sources", cfg.Sources.Enabled),
		zap.Strings("queries", cfg.Sources.Queries),
	)

	res, err := p.Run(ctx, sourceQuery())
	if err != nil {
		return err
	}
	if err := export.WriteFile(output, format, res.Scored, export.Options{IncludeRaw: includeRaw}); err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), res.Summary)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d leads to %s\n", len(res.Scored), output)
	return nil
}

func printSummary(w io.Writer, s pipeline.Summary) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "Leads: %d (raw %d, %d duplicates removed)\n", s.TotalLeads, s.RawLeads, s.DuplicatesRemoved)
	printTiers(w, s.Tiers, s.TotalLeads)
	p.Fprintf(w, "Average score: %.1f\n", s.AverageScore)
	p.Fprintf(w, "Leads with email: %d\n", s.LeadsWithEmail)
}

// printTiers writes one line per tier, hottest first.
func printTiers(w io.Writer, tiers map[model.Tier]int, total int) {
	title := cases.Title(language.English)
	for _, t := range model.Tiers {
		pct := 0.0
		if total > 0 {
			pct = float64(tiers[t]) / float64(total) * 100
		}
		fmt.Fprintf(w, "  %-5s %5d  (%.1f%%)\n", title.String(string(t)), tiers[t], pct)
	}
}

func printTierSummary(w io.Writer, s scorer.TierSummary) {
	fmt.Fprintf(w, "Scored %d leads\n", s.Total)
	printTiers(w, s.ByTier, s.Total)
}
