// Package scorer computes a deterministic propensity-to-buy score for lead
// records and assigns each one a tier.
package scorer

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// KeywordScore pairs a lowercase keyword with a 0-100 priority. Lists are
// ordered: topic relevance takes the first matching keyword.
type KeywordScore struct {
	Keyword string `yaml:"keyword" mapstructure:"keyword" json:"keyword"`
	Score   int    `yaml:"score" mapstructure:"score" json:"score"`
}

// PublicationBands are minimum publication counts for the 100/75/50/25% bands.
type PublicationBands struct {
	Excellent int `yaml:"excellent" mapstructure:"excellent" json:"excellent"`
	Good      int `yaml:"good" mapstructure:"good" json:"good"`
	Moderate  int `yaml:"moderate" mapstructure:"moderate" json:"moderate"`
	Minimal   int `yaml:"minimal" mapstructure:"minimal" json:"minimal"`
}

// GrantBands are minimum total award amounts (USD) for the 100/75/50/25% bands.
type GrantBands struct {
	Major       float64 `yaml:"major" mapstructure:"major" json:"major"`
	Significant float64 `yaml:"significant" mapstructure:"significant" json:"significant"`
	Moderate    float64 `yaml:"moderate" mapstructure:"moderate" json:"moderate"`
	Seed        float64 `yaml:"seed" mapstructure:"seed" json:"seed"`
}

// ScoringWeights configures the scoring engine. Each weight is the maximum
// number of points its factor contributes; the nine weights should sum to 100.
type ScoringWeights struct {
	PublicationWeight    float64 `yaml:"publication_weight" mapstructure:"publication_weight" json:"publication_weight"`
	GrantWeight          float64 `yaml:"grant_weight" mapstructure:"grant_weight" json:"grant_weight"`
	ClinicalTrialWeight  float64 `yaml:"clinical_trial_weight" mapstructure:"clinical_trial_weight" json:"clinical_trial_weight"`
	CitationWeight       float64 `yaml:"citation_weight" mapstructure:"citation_weight" json:"citation_weight"`
	ConferenceWeight     float64 `yaml:"conference_weight" mapstructure:"conference_weight" json:"conference_weight"`
	RecentActivityWeight float64 `yaml:"recent_activity_weight" mapstructure:"recent_activity_weight" json:"recent_activity_weight"`
	RoleFitWeight        float64 `yaml:"role_fit_weight" mapstructure:"role_fit_weight" json:"role_fit_weight"`
	InstitutionFitWeight float64 `yaml:"institution_fit_weight" mapstructure:"institution_fit_weight" json:"institution_fit_weight"`
	ResearchFocusWeight  float64 `yaml:"research_focus_weight" mapstructure:"research_focus_weight" json:"research_focus_weight"`

	HotThreshold  float64 `yaml:"hot_threshold" mapstructure:"hot_threshold" json:"hot_threshold"`
	WarmThreshold float64 `yaml:"warm_threshold" mapstructure:"warm_threshold" json:"warm_threshold"`
	ColdThreshold float64 `yaml:"cold_threshold" mapstructure:"cold_threshold" json:"cold_threshold"`

	PublicationBands PublicationBands `yaml:"publication_bands" mapstructure:"publication_bands" json:"publication_bands"`
	GrantBands       GrantBands       `yaml:"grant_bands" mapstructure:"grant_bands" json:"grant_bands"`

	RolePriorities []KeywordScore `yaml:"role_priorities" mapstructure:"role_priorities" json:"role_priorities"`
	TopicRelevance []KeywordScore `yaml:"topic_relevance" mapstructure:"topic_relevance" json:"topic_relevance"`
}

// DefaultWeights returns the standard weight profile. Weights sum to 100.
func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		// Research activity.
		PublicationWeight:   15,
		GrantWeight:         20,
		ClinicalTrialWeight: 10,
		CitationWeight:      5,

		// Engagement.
		ConferenceWeight:     10,
		RecentActivityWeight: 10,

		// Fit.
		RoleFitWeight:        10,
		InstitutionFitWeight: 10,
		ResearchFocusWeight:  10,

		HotThreshold:  75,
		WarmThreshold: 50,
		ColdThreshold: 25,

		PublicationBands: PublicationBands{Excellent: 10, Good: 5, Moderate: 2, Minimal: 1},
		GrantBands: GrantBands{
			Major:       1_000_000,
			Significant: 500_000,
			Moderate:    250_000,
			Seed:        100_000,
		},

		RolePriorities: DefaultRolePriorities(),
		TopicRelevance: DefaultTopicRelevance(),
	}
}

// DefaultRolePriorities returns the job-title keyword priorities.
func DefaultRolePriorities() []KeywordScore {
	return []KeywordScore{
		// Decision makers.
		{"chief scientific officer", 100},
		{"cso", 100},
		{"vp research", 95},
		{"vice president", 90},
		{"director", 85},
		{"head of", 85},

		// Research leads.
		{"principal investigator", 80},
		{"pi", 80},
		{"group leader", 75},
		{"lab director", 75},

		// Senior researchers.
		{"senior scientist", 70},
		{"staff scientist", 65},
		{"research scientist", 60},
		{"associate director", 70},

		// Specialists.
		{"toxicologist", 65},
		{"pharmacologist", 65},
		{"cell biologist", 60},

		// Operations.
		{"lab manager", 55},
		{"procurement", 50},
	}
}

// DefaultTopicRelevance returns the research-topic relevance table, most
// relevant first.
func DefaultTopicRelevance() []KeywordScore {
	return []KeywordScore{
		{"3d cell culture", 100},
		{"organoid", 100},
		{"spheroid", 100},
		{"organ-on-chip", 100},
		{"microphysiological", 100},

		{"in vitro toxicology", 80},
		{"drug screening", 80},
		{"hepatotoxicity", 80},
		{"dili", 80},
		{"tissue engineering", 80},

		{"drug discovery", 60},
		{"pharmacology", 60},
		{"toxicology", 60},
		{"cell culture", 60},
		{"high-throughput", 60},

		{"cancer research", 40},
		{"stem cell", 40},
		{"regenerative medicine", 40},
		{"biomarker", 40},
	}
}

// WeightSum returns the sum of the nine factor weights.
func (w ScoringWeights) WeightSum() float64 {
	return w.PublicationWeight + w.GrantWeight + w.ClinicalTrialWeight +
		w.CitationWeight + w.ConferenceWeight + w.RecentActivityWeight +
		w.RoleFitWeight + w.InstitutionFitWeight + w.ResearchFocusWeight
}

// Validate checks that the weights are internally consistent. Scoring never
// calls it; callers decide whether an invalid profile is fatal.
func (w ScoringWeights) Validate() error {
	var errs []string

	weights := []struct {
		name  string
		value float64
	}{
		{"publication_weight", w.PublicationWeight},
		{"grant_weight", w.GrantWeight},
		{"clinical_trial_weight", w.ClinicalTrialWeight},
		{"citation_weight", w.CitationWeight},
		{"conference_weight", w.ConferenceWeight},
		{"recent_activity_weight", w.RecentActivityWeight},
		{"role_fit_weight", w.RoleFitWeight},
		{"institution_fit_weight", w.InstitutionFitWeight},
		{"research_focus_weight", w.ResearchFocusWeight},
	}
	for _, wt := range weights {
		if wt.value < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", wt.name))
		}
	}

	if sum := w.WeightSum(); math.Abs(sum-100) >= 0.01 {
		errs = append(errs, fmt.Sprintf("weights must sum to 100, got %.2f", sum))
	}

	if w.HotThreshold < w.WarmThreshold || w.WarmThreshold < w.ColdThreshold {
		errs = append(errs, "tier thresholds must satisfy hot >= warm >= cold")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: weights validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadWeightsFile reads a YAML weight profile and overlays it on the
// defaults. Keys absent from the file keep their default values; a list
// present in the file replaces the default list.
func LoadWeightsFile(path string) (ScoringWeights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScoringWeights{}, eris.Wrapf(err, "scorer: read weights %s", path)
	}
	return ParseWeights(data)
}

// ParseWeights decodes a YAML weight profile over the defaults.
func ParseWeights(data []byte) (ScoringWeights, error) {
	w := DefaultWeights()
	// Lists are replaced wholesale, never merged by index.
	w.RolePriorities = nil
	w.TopicRelevance = nil
	if err := yaml.Unmarshal(data, &w); err != nil {
		return ScoringWeights{}, eris.Wrap(err, "scorer: parse weights")
	}
	if w.RolePriorities == nil {
		w.RolePriorities = DefaultRolePriorities()
	}
	if w.TopicRelevance == nil {
		w.TopicRelevance = DefaultTopicRelevance()
	}
	return w, nil
}

// YAML renders w as a weight profile.
func (w ScoringWeights) YAML() ([]byte, error) {
	out, err := yaml.Marshal(w)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: marshal weights")
	}
	return out, nil
}
