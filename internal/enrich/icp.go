package enrich

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/bioleads/internal/model"
)

// MaxICPScore is the highest score EvaluateICP can return.
const MaxICPScore = 70

// icpMatchThreshold is the minimum score for an ideal-customer match.
const icpMatchThreshold = 40

var icpTypeScores = map[string]float64{
	TypePharma:        30,
	TypeBiotech:       25,
	TypeCRO:           20,
	TypeMedicalCenter: 15,
	TypeAcademic:      15,
	TypeCDMO:          10,
	TypeGovernment:    10,
}

var icpSizeScores = map[string]float64{
	SizeEnterprise: 20,
	SizeLarge:      15,
	SizeMedium:     10,
	SizeSmall:      5,
}

var relevantFocus = []string{
	"drug discovery", "toxicology", "pharmacology",
	"cell biology", "cancer research", "stem cell",
}

const (
	focusPoints   = 5
	maxFocusScore = 20
)

// ICPEvaluation is the ideal-customer-profile fit of an institution.
type ICPEvaluation struct {
	Score      float64  `json:"score"`
	MaxScore   float64  `json:"max_score"`
	Percentage int      `json:"percentage"`
	Reasons    []string `json:"reasons"`
	Match      bool     `json:"is_ideal"`
}

// EvaluateICP scores an institution profile: up to 30 for its type, 20 for
// its size and 5 per relevant focus area up to 20.
func EvaluateICP(info model.CompanyInfo) ICPEvaluation {
	var (
		score   float64
		reasons []string
	)

	if s := icpTypeScores[info.Type]; s > 0 {
		score += s
		reasons = append(reasons, fmt.Sprintf("Industry type: %s (+%.0f)", info.Type, s))
	}
	if s := icpSizeScores[info.Size]; s > 0 {
		score += s
		reasons = append(reasons, fmt.Sprintf("Company size: %s (+%.0f)", info.Size, s))
	}

	var matches int
	for _, area := range info.FocusAreas {
		if containsAny(strings.ToLower(area), relevantFocus) {
			matches++
		}
	}
	if s := math.Min(float64(matches*focusPoints), maxFocusScore); s > 0 {
		score += s
		reasons = append(reasons, fmt.Sprintf("Relevant focus areas: %d (+%.0f)", matches, s))
	}

	return ICPEvaluation{
		Score:      score,
		MaxScore:   MaxICPScore,
		Percentage: int(math.Round(score / MaxICPScore * 100)),
		Reasons:    reasons,
		Match:      score >= icpMatchThreshold,
	}
}
