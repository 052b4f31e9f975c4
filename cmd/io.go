package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/bioleads/internal/export"
)

// outputFormat resolves the export format: the --format flag wins, then the
// output extension, then the configured default.
func outputFormat(cmd *cobra.Command, output string) (export.Format, error) {
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		return export.ParseFormat(f)
	}
	def, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return "", err
	}
	return export.FormatFromPath(output, def), nil
}

// splitList parses a comma separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
