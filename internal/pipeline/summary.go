package pipeline

import (
	"math"

	"github.com/sells-group/bioleads/internal/model"
	"github.com/sells-group/bioleads/internal/scorer"
)

// Summary describes the outcome of a run.
type Summary struct {
	TotalLeads        int                `json:"total_leads"`
	RawLeads          int                `json:"raw_leads"`
	DuplicatesRemoved int                `json:"duplicates_removed"`
	Tiers             map[model.Tier]int `json:"tiers"`
	HotPercentage     float64            `json:"hot_percentage"`
	Sources           map[string]int     `json:"sources"`
	AverageScore      float64            `json:"average_score"`
	LeadsWithEmail    int                `json:"leads_with_email"`
}

// Summarize counts tiers, provenance and contactability of scored leads.
func Summarize(raw, deduplicated, scored []*model.LeadRecord) Summary {
	tiers := scorer.Summarize(scored)
	s := Summary{
		TotalLeads:        len(scored),
		RawLeads:          len(raw),
		DuplicatesRemoved: len(raw) - len(deduplicated),
		Tiers:             tiers.ByTier,
		HotPercentage:     tiers.HotPercentage,
		Sources:           make(map[string]int),
	}

	var total float64
	for _, l := range scored {
		for _, src := range l.EffectiveSources() {
			s.Sources[src]++
		}
		if l.Score != nil {
			total += *l.Score
		}
		if model.HasText(l.Email) {
			s.LeadsWithEmail++
		}
	}
	if len(scored) > 0 {
		s.AverageScore = math.Round(total/float64(len(scored))*10) / 10
	}
	return s
}
