package scorer

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/bioleads/internal/model"
)

const (
	maxScore        = 100.0
	maxKeyFactors   = 5
	icpScale        = 70.0
	activeBonus     = 1.2
	factorMinimum   = 5.0
	sponsorIndustry = "INDUSTRY"
)

// grantDateLayouts are tried in order against the first ten characters of a
// grant end date.
var grantDateLayouts = []string{"2006-1-2", "2006/1/2", "2006"}

// institutionTypeFit maps company_info.type to a fraction of the
// institution weight when no ICP score is available.
var institutionTypeFit = map[string]float64{
	"pharma":         1.0,
	"biotech":        0.9,
	"cro":            0.8,
	"medical_center": 0.6,
	"academic":       0.5,
	"government":     0.4,
}

const defaultInstitutionFit = 0.3

// moneyPrinter formats award totals with thousands separators.
var moneyPrinter = message.NewPrinter(language.English)

// Engine scores lead records against a weight profile. It is safe for
// concurrent use; it never mutates its weights.
type Engine struct {
	weights ScoringWeights
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow overrides the clock used for grant activity and recency.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine. The weights are used as given; call
// ScoringWeights.Validate beforehand to reject a misconfigured profile.
func New(w ScoringWeights, opts ...Option) *Engine {
	e := &Engine{weights: w, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weights returns the engine's weight profile.
func (e *Engine) Weights() ScoringWeights { return e.weights }

// ScoreLead computes the breakdown for a single lead without modifying it.
func (e *Engine) ScoreLead(lead *model.LeadRecord) model.ScoreBreakdown {
	w := e.weights
	now := e.now()
	var factors []string

	pub, f := e.scorePublications(lead.Publications)
	factors = append(factors, f...)

	grant, f := e.scoreGrants(lead.Grants, now)
	factors = append(factors, f...)

	trial, f := e.scoreClinicalTrial(lead.ClinicalTrial)
	factors = append(factors, f...)

	citation := e.scoreCitations(lead.CitedByCount)

	conf, f := e.scoreConference(lead.ConferencePresentation)
	factors = append(factors, f...)

	recency := e.scoreRecency(now, lead.PubDate, lead.PublicationDate)
	if recency > factorMinimum {
		factors = append(factors, "Recent research activity")
	}

	role := RoleScore(w, model.Deref(lead.Title))
	if role > factorMinimum {
		factors = append(factors, "Decision-maker role: "+model.Deref(lead.Title))
	}

	inst := e.scoreInstitution(lead)
	if inst > factorMinimum {
		factors = append(factors, "Strong institution fit: "+lead.Institution)
	}

	topic := TopicRelevanceScore(w, lead.ResearchFocus)
	if topic > factorMinimum {
		factors = append(factors, "Highly relevant research focus")
	}

	total := math.Min(maxScore, pub+grant+trial+citation+conf+recency+role+inst+topic)
	if len(factors) > maxKeyFactors {
		factors = factors[:maxKeyFactors]
	}

	return model.ScoreBreakdown{
		TotalScore:     total,
		Tier:           DetermineTier(total, w),
		Publication:    pub,
		Grant:          grant,
		ClinicalTrial:  trial,
		Citation:       citation,
		Conference:     conf,
		Recency:        recency,
		RoleFit:        role,
		InstitutionFit: inst,
		TopicRelevance: topic,
		KeyFactors:     factors,
	}
}

// Apply scores lead and attaches the score, tier and breakdown to it.
func (e *Engine) Apply(lead *model.LeadRecord) model.ScoreBreakdown {
	b := e.ScoreLead(lead)
	lead.Score = model.Float(b.TotalScore)
	lead.Tier = b.Tier
	lead.ScoreBreakdown = &b
	return b
}

// ScoreBatch scores every lead in place, then sorts the slice by score,
// highest first. Ties keep their input order. The sorted slice is returned.
func (e *Engine) ScoreBatch(leads []*model.LeadRecord) []*model.LeadRecord {
	for _, l := range leads {
		e.Apply(l)
	}
	slices.SortStableFunc(leads, func(a, b *model.LeadRecord) int {
		return cmp.Compare(scoreOf(b), scoreOf(a))
	})

	s := Summarize(leads)
	zap.L().Info("scorer: batch scoring complete",
		zap.Int("leads_scored", s.Total),
		zap.Int("hot", s.ByTier[model.TierHot]),
		zap.Int("warm", s.ByTier[model.TierWarm]),
		zap.Int("cold", s.ByTier[model.TierCold]),
		zap.Int("ice", s.ByTier[model.TierIce]),
	)
	return leads
}

func scoreOf(l *model.LeadRecord) float64 {
	if l.Score == nil {
		return 0
	}
	return *l.Score
}

// DetermineTier maps a score onto the hot/warm/cold/ice cut points.
func DetermineTier(score float64, w ScoringWeights) model.Tier {
	switch {
	case score >= w.HotThreshold:
		return model.TierHot
	case score >= w.WarmThreshold:
		return model.TierWarm
	case score >= w.ColdThreshold:
		return model.TierCold
	default:
		return model.TierIce
	}
}

// TierSummary counts scored leads per tier.
type TierSummary struct {
	Total         int                `json:"total"`
	ByTier        map[model.Tier]int `json:"by_tier"`
	HotPercentage float64            `json:"hot_percentage"`
}

// Summarize builds a TierSummary. Leads without a tier count as ice.
func Summarize(leads []*model.LeadRecord) TierSummary {
	s := TierSummary{
		Total:  len(leads),
		ByTier: make(map[model.Tier]int, len(model.Tiers)),
	}
	for _, t := range model.Tiers {
		s.ByTier[t] = 0
	}
	for _, l := range leads {
		t := l.Tier
		if t == "" {
			t = model.TierIce
		}
		s.ByTier[t]++
	}
	if s.Total > 0 {
		s.HotPercentage = math.Round(float64(s.ByTier[model.TierHot])/float64(s.Total)*1000) / 10
	}
	return s
}

func (e *Engine) scorePublications(count int) (float64, []string) {
	b := e.weights.PublicationBands
	var pct float64
	var factors []string
	switch {
	case count >= b.Excellent:
		pct = 1.0
		factors = append(factors, fmt.Sprintf("Highly active researcher (%d+ publications)", count))
	case count >= b.Good:
		pct = 0.75
		factors = append(factors, fmt.Sprintf("Active researcher (%d publications)", count))
	case count >= b.Moderate:
		pct = 0.5
	case count >= b.Minimal:
		pct = 0.25
	}
	return pct * e.weights.PublicationWeight, factors
}

func (e *Engine) scoreGrants(grants []model.Grant, now time.Time) (float64, []string) {
	if len(grants) == 0 {
		return 0, nil
	}

	var total float64
	active := 0
	for _, g := range grants {
		total += g.AwardAmount
		if grantActive(g, now) {
			active++
		}
	}

	b := e.weights.GrantBands
	var pct float64
	var factors []string
	switch {
	case total >= b.Major:
		pct = 1.0
		factors = append(factors, moneyPrinter.Sprintf("Major funding: $%.0f", total))
	case total >= b.Significant:
		pct = 0.75
		factors = append(factors, moneyPrinter.Sprintf("Significant funding: $%.0f", total))
	case total >= b.Moderate:
		pct = 0.5
	case total >= b.Seed:
		pct = 0.25
	default:
		pct = 0.1
	}

	score := pct * e.weights.GrantWeight
	if active >= 2 {
		score = math.Min(score*activeBonus, e.weights.GrantWeight)
		factors = append(factors, fmt.Sprintf("%d active grants", active))
	}
	return score, factors
}

// grantActive reports whether g ends after now. Missing or unparsable end
// dates count as active.
func grantActive(g model.Grant, now time.Time) bool {
	end := strings.TrimSpace(model.Deref(g.EndDate))
	if end == "" {
		return true
	}
	if len(end) > 10 {
		end = end[:10]
	}
	for _, layout := range grantDateLayouts {
		t, err := time.Parse(layout, end)
		if err == nil {
			return t.After(now)
		}
	}
	return true
}

func (e *Engine) scoreClinicalTrial(trial *model.ClinicalTrial) (float64, []string) {
	if trial == nil {
		return 0, nil
	}
	if trial.SponsorClass == sponsorIndustry {
		return e.weights.ClinicalTrialWeight, []string{"Industry-sponsored clinical trial"}
	}
	return e.weights.ClinicalTrialWeight * 0.5, []string{"Clinical trial involvement"}
}

func (e *Engine) scoreCitations(cited int) float64 {
	w := e.weights.CitationWeight
	switch {
	case cited >= 1000:
		return w
	case cited >= 500:
		return w * 0.75
	case cited >= 100:
		return w * 0.5
	case cited >= 50:
		return w * 0.25
	}
	return 0
}

func (e *Engine) scoreConference(p *model.ConferencePresentation) (float64, []string) {
	if p == nil {
		return 0, nil
	}
	name := p.Conference
	if name == "" {
		name = "conference"
	}
	switch p.SessionType {
	case "keynote", "symposium":
		return e.weights.ConferenceWeight, []string{"Keynote/symposium at " + name}
	}
	return e.weights.ConferenceWeight * 0.7, []string{"Presented at " + name}
}

// scoreRecency uses the first date field whose leading four characters parse
// as a year within the last three years. Older dates fall through to the next
// field.
func (e *Engine) scoreRecency(now time.Time, dates ...*string) float64 {
	w := e.weights.RecentActivityWeight
	for _, d := range dates {
		v := model.Deref(d)
		if len(v) < 4 {
			continue
		}
		year, err := strconv.Atoi(v[:4])
		if err != nil {
			continue
		}
		switch age := now.Year() - year; {
		case age <= 1:
			return w
		case age <= 2:
			return w * 0.75
		case age <= 3:
			return w * 0.5
		}
	}
	return 0
}

func (e *Engine) scoreInstitution(lead *model.LeadRecord) float64 {
	w := e.weights.InstitutionFitWeight
	if lead.ICPScore != nil && *lead.ICPScore != 0 {
		return math.Min(*lead.ICPScore/icpScale*w, w)
	}

	var kind string
	if lead.CompanyInfo != nil {
		kind = lead.CompanyInfo.Type
	}
	pct, ok := institutionTypeFit[kind]
	if !ok {
		pct = defaultInstitutionFit
	}
	return pct * w
}

// RoleScore returns the role-fit points for a job title: the highest
// priority among keywords contained in the title, scaled to the weight.
func RoleScore(w ScoringWeights, title string) float64 {
	if title == "" {
		return 0
	}
	title = strings.ToLower(title)
	best := 0
	for _, r := range w.RolePriorities {
		if k := strings.ToLower(r.Keyword); k != "" && strings.Contains(title, k) {
			best = max(best, r.Score)
		}
	}
	return float64(best) / 100 * w.RoleFitWeight
}

// TopicRelevanceScore averages the relevance of each research topic and
// scales it to the weight. Each topic takes the first table keyword it
// contains or is contained in; topics matching nothing count as zero.
func TopicRelevanceScore(w ScoringWeights, topics []string) float64 {
	if len(topics) == 0 {
		return 0
	}
	total := 0
	for _, topic := range topics {
		topic = strings.ToLower(topic)
		for _, k := range w.TopicRelevance {
			kw := strings.ToLower(k.Keyword)
			if strings.Contains(topic, kw) || strings.Contains(kw, topic) {
				total += k.Score
				break
			}
		}
	}
	avg := float64(total) / float64(len(topics))
	return math.Min(avg/100*w.ResearchFocusWeight, w.ResearchFocusWeight)
}
