package model

import (
	"encoding/json"
	"math"
)

// Tier is the discrete propensity bucket derived from a score.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
	TierIce  Tier = "ice"
)

// Tiers lists every tier from hottest to coldest.
var Tiers = []Tier{TierHot, TierWarm, TierCold, TierIce}

// MatchType names the signal that decided a pairwise comparison.
type MatchType string

const (
	MatchEmail                MatchType = "email"
	MatchORCID                MatchType = "orcid"
	MatchFuzzyNameInstitution MatchType = "fuzzy_name_institution"
	MatchFuzzyName            MatchType = "fuzzy_name"
	MatchExactName            MatchType = "exact_name"
	MatchNone                 MatchType = "none"
)

// MatchResult is the outcome of comparing two lead records.
type MatchResult struct {
	IsMatch    bool      `json:"is_match"`
	Confidence float64   `json:"confidence"`
	Type       MatchType `json:"match_type"`
}

// NoMatch is the zero-confidence negative result.
var NoMatch = MatchResult{Type: MatchNone}

// ScoreBreakdown is the per-factor result of scoring one lead.
type ScoreBreakdown struct {
	TotalScore     float64  `json:"total_score"`
	Tier           Tier     `json:"tier"`
	Publication    float64  `json:"publication"`
	Grant          float64  `json:"grant"`
	ClinicalTrial  float64  `json:"clinical_trial"`
	Citation       float64  `json:"citation"`
	Conference     float64  `json:"conference"`
	Recency        float64  `json:"recency"`
	RoleFit        float64  `json:"role_fit"`
	InstitutionFit float64  `json:"institution_fit"`
	TopicRelevance float64  `json:"topic_relevance"`
	KeyFactors     []string `json:"key_factors"`
}

type breakdownJSON struct {
	TotalScore float64            `json:"total_score"`
	Tier       Tier               `json:"tier"`
	Breakdown  map[string]float64 `json:"breakdown"`
	KeyFactors []string           `json:"key_factors"`
}

// MarshalJSON rounds the total to one decimal and each factor to two.
func (b ScoreBreakdown) MarshalJSON() ([]byte, error) {
	factors := b.KeyFactors
	if factors == nil {
		factors = []string{}
	}
	return json.Marshal(breakdownJSON{
		TotalScore: round(b.TotalScore, 1),
		Tier:       b.Tier,
		Breakdown: map[string]float64{
			"publication":     round(b.Publication, 2),
			"grant":           round(b.Grant, 2),
			"clinical_trial":  round(b.ClinicalTrial, 2),
			"citation":        round(b.Citation, 2),
			"conference":      round(b.Conference, 2),
			"recency":         round(b.Recency, 2),
			"role_fit":        round(b.RoleFit, 2),
			"institution_fit": round(b.InstitutionFit, 2),
			"topic_relevance": round(b.TopicRelevance, 2),
		},
		KeyFactors: factors,
	})
}

// UnmarshalJSON reads the shape written by MarshalJSON.
func (b *ScoreBreakdown) UnmarshalJSON(data []byte) error {
	var raw breakdownJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = ScoreBreakdown{
		TotalScore:     raw.TotalScore,
		Tier:           raw.Tier,
		Publication:    raw.Breakdown["publication"],
		Grant:          raw.Breakdown["grant"],
		ClinicalTrial:  raw.Breakdown["clinical_trial"],
		Citation:       raw.Breakdown["citation"],
		Conference:     raw.Breakdown["conference"],
		Recency:        raw.Breakdown["recency"],
		RoleFit:        raw.Breakdown["role_fit"],
		InstitutionFit: raw.Breakdown["institution_fit"],
		TopicRelevance: raw.Breakdown["topic_relevance"],
		KeyFactors:     raw.KeyFactors,
	}
	return nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
