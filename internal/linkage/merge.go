package linkage

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/sells-group/bioleads/internal/model"
)

// merge folds a group of records, given in input order, into a new record.
// A singleton is copied with its provenance populated.
func (d *Deduplicator) merge(group []*model.LeadRecord) *model.LeadRecord {
	merged := group[0].Clone()
	sources := slices.Clone(group[0].EffectiveSources())

	if len(group) > 1 {
		for _, l := range group[1:] {
			sources = append(sources, l.EffectiveSources()...)

			fillString(&merged.Email, l.Email)
			fillString(&merged.Title, l.Title)
			fillString(&merged.Department, l.Department)
			fillString(&merged.ORCID, l.ORCID)
			fillString(&merged.Location, l.Location)
			fillString(&merged.PubDate, l.PubDate)
			fillString(&merged.PublicationDate, l.PublicationDate)
			if merged.ClinicalTrial == nil {
				merged.ClinicalTrial = l.ClinicalTrial
			}
			if merged.ConferencePresentation == nil {
				merged.ConferencePresentation = l.ConferencePresentation
			}

			merged.ResearchFocus = append(merged.ResearchFocus, l.ResearchFocus...)
			merged.Grants = append(merged.Grants, l.Grants...)

			merged.Publications += l.Publications
			merged.CitedByCount = max(merged.CitedByCount, l.CitedByCount)
		}

		merged.ResearchFocus = uniqueStrings(merged.ResearchFocus)
		if d.dedupeGrants {
			merged.Grants = uniqueGrants(merged.Grants)
		}
		merged.RawDataSources = mergeRawData(group)
	}

	slices.Sort(sources)
	merged.Sources = slices.Compact(sources)
	merged.SourceCount = len(merged.Sources)
	return merged
}

// fillString sets *dst from src when dst is absent or blank.
func fillString(dst **string, src *string) {
	if !model.HasText(*dst) && model.HasText(src) {
		*dst = src
	}
}

// uniqueStrings drops repeated values, keeping first occurrences.
func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// grantKey identifies an award. Project numbers win; otherwise the amount,
// end date and title together stand in for identity.
func grantKey(g model.Grant) string {
	if g.ProjectNumber != "" {
		return "project:" + g.ProjectNumber
	}
	return fmt.Sprintf("award:%.2f|%s|%s", g.AwardAmount, model.Deref(g.EndDate), g.Title)
}

func uniqueGrants(in []model.Grant) []model.Grant {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.Grant, 0, len(in))
	for _, g := range in {
		k := grantKey(g)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, g)
	}
	return out
}

// mergeRawData keeps each member's source payload keyed by source name.
// Earlier members win when two share a source.
func mergeRawData(group []*model.LeadRecord) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	for _, l := range group {
		for src, raw := range l.RawDataSources {
			if _, ok := out[src]; !ok {
				out[src] = raw
			}
		}
		if l.Source == "" || len(l.RawData) == 0 {
			continue
		}
		if _, ok := out[l.Source]; !ok {
			out[l.Source] = l.RawData
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
