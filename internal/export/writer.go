package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/bioleads/internal/model"
)

// Format is an output file format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet written by the XLSX format.
const SheetName = "Leads"

// focusColumnLimit caps the research focus entries in tabular exports.
const focusColumnLimit = 5

// ParseFormat validates a format name. "excel" is accepted for xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", eris.Errorf("export: unsupported format %q", s)
}

// FormatFromPath infers the format from a file extension, falling back to
// def when the extension is not recognised.
func FormatFromPath(path string, def Format) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return def
}

// Options tune tabular exports.
type Options struct {
	// IncludeRaw adds the merged source payloads as a JSON column.
	IncludeRaw bool
}

var columns = []string{
	"name",
	"email",
	"email_confidence",
	"title",
	"institution",
	"department",
	"location",
	"score",
	"tier",
	"sources",
	"research_focus",
	"publications",
	"grants_count",
	"orcid",
}

func header(opts Options) []string {
	if opts.IncludeRaw {
		return append(append([]string{}, columns...), "raw_data")
	}
	return columns
}

// Row flattens a lead into the tabular column order.
func Row(l *model.LeadRecord, opts Options) []string {
	row := []string{
		l.Name,
		model.Deref(l.Email),
		formatOptionalFloat(l.EmailConfidence, 2),
		model.Deref(l.Title),
		l.Institution,
		model.Deref(l.Department),
		model.Deref(l.Location),
		formatOptionalFloat(l.Score, 1),
		string(l.Tier),
		strings.Join(l.EffectiveSources(), ", "),
		strings.Join(l.ResearchFocus[:min(len(l.ResearchFocus), focusColumnLimit)], "; "),
		strconv.Itoa(l.Publications),
		strconv.Itoa(len(l.Grants)),
		model.Deref(l.ORCID),
	}
	if opts.IncludeRaw {
		row = append(row, rawColumn(l))
	}
	return row
}

func formatOptionalFloat(f *float64, prec int) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', prec, 64)
}

func rawColumn(l *model.LeadRecord) string {
	if len(l.RawDataSources) > 0 {
		data, err := json.Marshal(l.RawDataSources)
		if err == nil {
			return string(data)
		}
	}
	return string(l.RawData)
}

// WriteJSON writes leads as an indented JSON array readable by ReadLeads.
func WriteJSON(w io.Writer, leads []*model.LeadRecord) error {
	if leads == nil {
		leads = []*model.LeadRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(leads); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

// WriteCSV writes a header row followed by one row per lead.
func WriteCSV(w io.Writer, leads []*model.LeadRecord, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(opts)); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, l := range leads {
		if err := cw.Write(Row(l, opts)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// WriteXLSX writes the leads to a single "Leads" worksheet. Score,
// publications and grant counts are stored as numbers.
func WriteXLSX(w io.Writer, leads []*model.LeadRecord, opts Options) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	cols := header(opts)
	hdr := sheet.AddRow()
	for _, name := range cols {
		hdr.AddCell().SetString(name)
	}

	for _, l := range leads {
		row := sheet.AddRow()
		for i, v := range Row(l, opts) {
			cell := row.AddCell()
			switch cols[i] {
			case "score":
				if l.Score != nil {
					cell.SetFloat(*l.Score)
					continue
				}
			case "publications":
				cell.SetInt(l.Publications)
				continue
			case "grants_count":
				cell.SetInt(len(l.Grants))
				continue
			}
			cell.SetString(v)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// Write dispatches to the writer for format.
func Write(w io.Writer, format Format, leads []*model.LeadRecord, opts Options) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, leads)
	case FormatCSV:
		return WriteCSV(w, leads, opts)
	case FormatXLSX:
		return WriteXLSX(w, leads, opts)
	}
	return eris.Errorf("export: unsupported format %q", format)
}

// WriteFile creates path, including parent directories, and writes leads
// in format.
func WriteFile(path string, format Format, leads []*model.LeadRecord, opts Options) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "export: create output dir")
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}

	if err := Write(f, format, leads, opts); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "export: close file")
	}

	zap.L().Info("export: wrote leads",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("leads", len(leads)),
	)
	return nil
}
