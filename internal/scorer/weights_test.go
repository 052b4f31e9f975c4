package scorer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 100, w.WeightSum(), 0.0001)
	assert.NoError(t, w.Validate())
	assert.Equal(t, 75.0, w.HotThreshold)
	assert.Equal(t, 50.0, w.WarmThreshold)
	assert.Equal(t, 25.0, w.ColdThreshold)
	assert.Equal(t, PublicationBands{Excellent: 10, Good: 5, Moderate: 2, Minimal: 1}, w.PublicationBands)
	assert.Len(t, w.RolePriorities, 19)
	assert.Len(t, w.TopicRelevance, 19)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(w *ScoringWeights)
		wantErr string
	}{
		{"defaults", func(*ScoringWeights) {}, ""},
		{"within tolerance", func(w *ScoringWeights) { w.CitationWeight = 5.005 }, ""},
		{"sum too low", func(w *ScoringWeights) { w.GrantWeight = 15 }, "weights must sum to 100, got 95.00"},
		{"sum too high", func(w *ScoringWeights) { w.CitationWeight = 5.5 }, "weights must sum to 100"},
		{"negative weight", func(w *ScoringWeights) {
			w.ConferenceWeight = -10
			w.GrantWeight = 40
		}, "conference_weight must be >= 0"},
		{"thresholds out of order", func(w *ScoringWeights) { w.WarmThreshold = 80 }, "hot >= warm >= cold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights()
			tt.mutate(&w)
			err := w.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseWeights_Overlay(t *testing.T) {
	data := []byte(`
grant_weight: 25
citation_weight: 0
hot_threshold: 80
grant_bands:
  major: 2000000
topic_relevance:
  - keyword: organoid
    score: 100
`)

	w, err := ParseWeights(data)
	require.NoError(t, err)

	assert.Equal(t, 25.0, w.GrantWeight)
	assert.Equal(t, 0.0, w.CitationWeight)
	assert.Equal(t, 15.0, w.PublicationWeight)
	assert.Equal(t, 80.0, w.HotThreshold)
	assert.Equal(t, 2_000_000.0, w.GrantBands.Major)
	assert.Equal(t, 500_000.0, w.GrantBands.Significant)
	assert.Equal(t, []KeywordScore{{Keyword: "organoid", Score: 100}}, w.TopicRelevance)
	assert.Equal(t, DefaultRolePriorities(), w.RolePriorities)
	assert.NoError(t, w.Validate())
}

func TestParseWeights_Invalid(t *testing.T) {
	_, err := ParseWeights([]byte("grant_weight: [not, a, number]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scorer: parse weights")
}

func TestLoadWeightsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("role_fit_weight: 15\nresearch_focus_weight: 5\n"), 0o644))

	w, err := LoadWeightsFile(path)
	require.NoError(t, err)
	assert.Equal(t, 15.0, w.RoleFitWeight)
	assert.Equal(t, 5.0, w.ResearchFocusWeight)
	assert.NoError(t, w.Validate())

	_, err = LoadWeightsFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestWeightsYAML(t *testing.T) {
	out, err := DefaultWeights().YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "publication_weight: 15")

	back, err := ParseWeights(out)
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), back)
}
