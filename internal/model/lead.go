// Package model defines the lead record shape shared by the source adapters,
// the linkage engine, the enrichment collaborators and the scoring engine.
package model

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// SourceUnknown is recorded when a record carries no provenance at all.
const SourceUnknown = "unknown"

// LeadRecord is a researcher or organization that is a candidate prospect.
// Optional scalar fields are pointers: nil means absent, which is distinct
// from an empty string reported by a source.
type LeadRecord struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name"`
	Email           *string  `json:"email,omitempty"`
	EmailConfidence *float64 `json:"email_confidence,omitempty"`
	ORCID           *string  `json:"orcid,omitempty"`
	Institution     string   `json:"institution"`
	Title           *string  `json:"title,omitempty"`
	Department      *string  `json:"department,omitempty"`
	Location        *string  `json:"location,omitempty"`

	ResearchFocus []string `json:"research_focus,omitempty"`
	Publications  int      `json:"publications"`
	CitedByCount  int      `json:"cited_by_count"`
	Grants        []Grant  `json:"grants,omitempty"`

	ClinicalTrial          *ClinicalTrial          `json:"clinical_trial,omitempty"`
	ConferencePresentation *ConferencePresentation `json:"conference_presentation,omitempty"`
	CompanyInfo            *CompanyInfo            `json:"company_info,omitempty"`
	ICPScore               *float64                `json:"icp_score,omitempty"`
	ICPMatch               *bool                   `json:"icp_match,omitempty"`

	PubDate         *string `json:"pub_date,omitempty"`
	PublicationDate *string `json:"publication_date,omitempty"`

	Source         string                     `json:"source,omitempty"`
	Sources        []string                   `json:"sources,omitempty"`
	SourceCount    int                        `json:"source_count,omitempty"`
	RawData        json.RawMessage            `json:"raw_data,omitempty"`
	RawDataSources map[string]json.RawMessage `json:"raw_data_sources,omitempty"`

	Score          *float64        `json:"score,omitempty"`
	Tier           Tier            `json:"tier,omitempty"`
	ScoreBreakdown *ScoreBreakdown `json:"score_breakdown,omitempty"`
}

// Grant is a single funding award attached to a lead.
type Grant struct {
	ProjectNumber string  `json:"project_number,omitempty"`
	Title         string  `json:"title,omitempty"`
	AwardAmount   float64 `json:"award_amount"`
	StartDate     *string `json:"start_date,omitempty"`
	EndDate       *string `json:"end_date,omitempty"`
	Agency        string  `json:"agency,omitempty"`
}

// ClinicalTrial describes trial involvement reported by a registry.
type ClinicalTrial struct {
	NCTID        string `json:"nct_id,omitempty"`
	Title        string `json:"title,omitempty"`
	Phase        string `json:"phase,omitempty"`
	Status       string `json:"status,omitempty"`
	SponsorName  string `json:"sponsor_name,omitempty"`
	SponsorClass string `json:"sponsor_class,omitempty"`
}

// ConferencePresentation describes a talk or poster at a meeting.
type ConferencePresentation struct {
	Conference  string `json:"conference,omitempty"`
	Title       string `json:"title,omitempty"`
	SessionType string `json:"session_type,omitempty"`
	Date        string `json:"date,omitempty"`
}

// CompanyInfo is the institution profile attached by company enrichment.
type CompanyInfo struct {
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"`
	Size        string   `json:"size,omitempty"`
	Website     string   `json:"website,omitempty"`
	Description string   `json:"description,omitempty"`
	FocusAreas  []string `json:"focus_areas,omitempty"`
	IsPublic    bool     `json:"is_public,omitempty"`
}

// EffectiveSources returns the provenance of the record: its Sources set if
// populated, otherwise its single Source, otherwise SourceUnknown.
func (l *LeadRecord) EffectiveSources() []string {
	if len(l.Sources) > 0 {
		return l.Sources
	}
	if l.Source != "" {
		return []string{l.Source}
	}
	return []string{SourceUnknown}
}

// Clone returns a shallow copy whose slices and maps can be appended to or
// written without touching the receiver.
func (l *LeadRecord) Clone() *LeadRecord {
	c := *l
	c.ResearchFocus = slices.Clone(l.ResearchFocus)
	c.Grants = slices.Clone(l.Grants)
	c.Sources = slices.Clone(l.Sources)
	c.RawDataSources = maps.Clone(l.RawDataSources)
	return &c
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Deref returns the pointed-to string, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// HasText reports whether p is set to a non-blank value.
func HasText(p *string) bool {
	return p != nil && strings.TrimSpace(*p) != ""
}
