package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/bioleads/internal/export"
	"github.com/sells-group/bioleads/internal/pipeline"
	"github.com/sells-group/bioleads/internal/sources"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch raw leads from the enabled sources",
	RunE:  runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.String("queries", "", "comma-separated search terms (overrides config)")
	f.Int("max-results", 0, "maximum results per source and term (0=use config)")
	f.String("sources", "", "comma-separated sources to query (overrides config)")
	f.String("output", "leads_raw.json", "output file path")
	f.String("format", "", "output format: json, csv or xlsx (default from extension)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applySourceFlags(cmd)
	if err := cfg.Validate("fetch"); err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	format, err := outputFormat(cmd, output)
	if err != nil {
		return err
	}

	srcs, err := sources.New(cfg.Sources)
	if err != nil {
		return err
	}
	p := pipeline.New(srcs, nil, nil, pipeline.WithConcurrency(cfg.Sources.Concurrency))

	leads, err := p.Fetch(ctx, sourceQuery())
	if err != nil {
		return err
	}
	if err := export.WriteFile(output, format, leads, export.Options{IncludeRaw: true}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d raw leads to %s\n", len(leads), output)
	return nil
}
