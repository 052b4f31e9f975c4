package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bioleads/internal/model"
)

func sampleLeads() []*model.LeadRecord {
	return []*model.LeadRecord{
		{
			ID:            "lead-1",
			Name:          "Jane Smith",
			Email:         model.String("jane@harvard.edu"),
			Title:         model.String("Professor"),
			Institution:   "Harvard University",
			Location:      model.String("Boston, MA"),
			ResearchFocus: []string{"organoid", "toxicology", "hepatocyte", "DILI", "spheroid", "microfluidics"},
			Publications:  42,
			Grants:        []model.Grant{{ProjectNumber: "R01"}, {ProjectNumber: "R21"}},
			Sources:       []string{"nih", "openalex"},
			ORCID:         model.String("0000-0002-1825-0097"),
			Score:         model.Float(77.64),
			Tier:          model.TierHot,
			RawDataSources: map[string]json.RawMessage{
				"nih": json.RawMessage(`{"project_num":"R01"}`),
			},
			ScoreBreakdown: &model.ScoreBreakdown{TotalScore: 77.64, Tier: model.TierHot, KeyFactors: []string{"Recent research activity"}},
		},
		{
			ID:          "lead-2",
			Name:        "Acme Bio",
			Institution: "Acme Bio",
			Source:      "clinicaltrials",
			RawData:     json.RawMessage(`{"nct":"NCT01"}`),
		},
	}
}

func TestReadLeads(t *testing.T) {
	input := `[{"id":"a","name":"Jane Smith","institution":"MIT","publications":3,"tier":"warm"},
		{"id":"b","name":"Bob Lee","institution":"","publications":0}]`

	leads, err := ReadLeads(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "Jane Smith", leads[0].Name)
	assert.Equal(t, model.TierWarm, leads[0].Tier)
	assert.Equal(t, 3, leads[0].Publications)
	assert.Equal(t, "b", leads[1].ID)
}

func TestReadLeadsEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr string
	}{
		{"empty input", "", 0, ""},
		{"empty array", "[]", 0, ""},
		{"object instead of array", `{"name":"x"}`, 0, "expected a JSON array"},
		{"bad element", `[{"name":"ok"},{"name":5}]`, 0, "decode lead 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leads, err := ReadLeads(context.Background(), strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, leads, tt.want)
		})
	}
}

func TestReadLeadsFileMissing(t *testing.T) {
	_, err := ReadLeadsFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open leads file")
}

func TestWriteJSONReadsBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleLeads()))

	back, err := ReadLeads(context.Background(), &buf)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, "Jane Smith", back[0].Name)
	assert.Equal(t, model.TierHot, back[0].Tier)
	require.NotNil(t, back[0].ScoreBreakdown)
	assert.InDelta(t, 77.6, back[0].ScoreBreakdown.TotalScore, 0.001)
	assert.Len(t, back[0].Grants, 2)
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleLeads(), Options{}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, columns, records[0])

	jane := records[1]
	assert.Equal(t, []string{
		"Jane Smith",
		"jane@harvard.edu",
		"",
		"Professor",
		"Harvard University",
		"",
		"Boston, MA",
		"77.6",
		"hot",
		"nih, openalex",
		"organoid; toxicology; hepatocyte; DILI; spheroid",
		"42",
		"2",
		"0000-0002-1825-0097",
	}, jane)

	acme := records[2]
	assert.Equal(t, "clinicaltrials", acme[9])
	assert.Equal(t, "", acme[7])
	assert.Equal(t, "0", acme[12])
}

func TestWriteCSVIncludeRaw(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleLeads(), Options{IncludeRaw: true}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "raw_data", records[0][len(records[0])-1])
	assert.Equal(t, `{"nih":{"project_num":"R01"}}`, records[1][14])
	assert.Equal(t, `{"nct":"NCT01"}`, records[2][14])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleLeads(), Options{}))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet[SheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "name", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Jane Smith", sheet.Rows[1].Cells[0].String())

	score, err := sheet.Rows[1].Cells[7].Float()
	require.NoError(t, err)
	assert.InDelta(t, 77.64, score, 0.001)

	pubs, err := sheet.Rows[1].Cells[11].Int()
	require.NoError(t, err)
	assert.Equal(t, 42, pubs)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"CSV", FormatCSV, false},
		{"excel", FormatXLSX, false},
		{" xlsx ", FormatXLSX, false},
		{"parquet", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	assert.Equal(t, FormatXLSX, FormatFromPath("out/leads.xlsx", FormatCSV))
	assert.Equal(t, FormatJSON, FormatFromPath("leads.JSON", FormatCSV))
	assert.Equal(t, FormatCSV, FormatFromPath("leads.txt", FormatCSV))
}

func TestWriteFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "leads.json")
	require.NoError(t, WriteFile(path, FormatJSON, sampleLeads(), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Jane Smith"`)

	back, err := ReadLeadsFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, back, 2)
}

func TestWriteUnsupportedFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("parquet"), nil, Options{})
	require.Error(t, err)
}
