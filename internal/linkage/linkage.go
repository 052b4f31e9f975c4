// Package linkage finds lead records that describe the same person across
// sources and merges each group into one canonical record.
package linkage

import (
	"go.uber.org/zap"

	"github.com/sells-group/bioleads/internal/model"
)

const (
	// DefaultNameThreshold is the minimum fuzzy name ratio for a match.
	DefaultNameThreshold = 85
	// DefaultInstitutionThreshold is the minimum fuzzy institution ratio.
	DefaultInstitutionThreshold = 70
	// nameOnlyThreshold applies when either side lacks an institution.
	nameOnlyThreshold = 95
	// exactNameConfidence is reported when no similarity capability exists.
	exactNameConfidence = 0.9
)

// Deduplicator links and merges lead records. It holds configuration only
// and is safe to reuse across batches.
type Deduplicator struct {
	nameThreshold        int
	institutionThreshold int
	similarity           Similarity
	dedupeGrants         bool
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithNameThreshold sets the fuzzy name threshold (0-100).
func WithNameThreshold(t int) Option {
	return func(d *Deduplicator) { d.nameThreshold = t }
}

// WithInstitutionThreshold sets the fuzzy institution threshold (0-100).
func WithInstitutionThreshold(t int) Option {
	return func(d *Deduplicator) { d.institutionThreshold = t }
}

// WithSimilarity replaces the string similarity used by the fuzzy pass.
func WithSimilarity(s Similarity) Option {
	return func(d *Deduplicator) { d.similarity = s }
}

// WithoutFuzzy disables approximate matching. Name comparison then falls back
// to exact normalized equality at a fixed 0.9 confidence.
func WithoutFuzzy() Option {
	return func(d *Deduplicator) { d.similarity = nil }
}

// WithGrantDedupe collapses grants that describe the same award when merging.
func WithGrantDedupe() Option {
	return func(d *Deduplicator) { d.dedupeGrants = true }
}

// New creates a Deduplicator with the default thresholds and Levenshtein
// similarity.
func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{
		nameThreshold:        DefaultNameThreshold,
		institutionThreshold: DefaultInstitutionThreshold,
		similarity:           NewLevenshteinRatio(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.similarity == nil {
		zap.L().Warn("linkage: fuzzy matching unavailable, using exact name matching only")
	}
	return d
}

// index maps a normalized key to input positions in first-seen order.
type index struct {
	keys    []string
	members map[string][]int
}

func newIndex() *index {
	return &index{members: make(map[string][]int)}
}

func (ix *index) add(key string, pos int) {
	if key == "" {
		return
	}
	if _, ok := ix.members[key]; !ok {
		ix.keys = append(ix.keys, key)
	}
	ix.members[key] = append(ix.members[key], pos)
}

// buckets returns every bucket holding more than one record, in key
// first-seen order.
func (ix *index) buckets() [][]int {
	var out [][]int
	for _, k := range ix.keys {
		if m := ix.members[k]; len(m) > 1 {
			out = append(out, m)
		}
	}
	return out
}

// Deduplicate partitions leads into groups describing the same entity and
// returns one record per group, ordered by each group's first input position.
// Input records are never modified.
func (d *Deduplicator) Deduplicate(leads []*model.LeadRecord) []*model.LeadRecord {
	if len(leads) == 0 {
		return []*model.LeadRecord{}
	}

	byEmail, byORCID, byName := newIndex(), newIndex(), newIndex()
	for i, l := range leads {
		byEmail.add(NormalizeEmail(l.Email), i)
		byORCID.add(NormalizeORCID(l.ORCID), i)
		byName.add(NormalizeName(l.Name), i)
	}

	set := newDisjointSet(len(leads))

	// Exact identifiers: every bucket member joins the bucket's first member.
	exact := 0
	for _, ix := range []*index{byEmail, byORCID} {
		for _, bucket := range ix.buckets() {
			for _, pos := range bucket[1:] {
				if set.union(bucket[0], pos) {
					exact++
				}
			}
		}
	}

	// Fuzzy pass within each name bucket.
	fuzzy := 0
	for _, bucket := range byName.buckets() {
		for a := 0; a < len(bucket); a++ {
			for b := a + 1; b < len(bucket); b++ {
				i, j := bucket[a], bucket[b]
				if set.same(i, j) {
					continue
				}
				m := d.Match(leads[i], leads[j])
				if !m.IsMatch {
					continue
				}
				set.union(i, j)
				fuzzy++
				zap.L().Debug("linkage: fuzzy match",
					zap.Int("left", i),
					zap.Int("right", j),
					zap.String("match_type", string(m.Type)),
					zap.Float64("confidence", m.Confidence),
				)
			}
		}
	}

	groups := set.groups()
	out := make([]*model.LeadRecord, 0, len(groups))
	for _, g := range groups {
		members := make([]*model.LeadRecord, len(g))
		for k, pos := range g {
			members[k] = leads[pos]
		}
		out = append(out, d.merge(members))
	}

	zap.L().Info("linkage: deduplicated leads",
		zap.Int("input", len(leads)),
		zap.Int("output", len(out)),
		zap.Int("exact_unions", exact),
		zap.Int("fuzzy_unions", fuzzy),
	)
	return out
}

// Match compares two records: email, then ORCID, then fuzzy name and
// institution similarity.
func (d *Deduplicator) Match(a, b *model.LeadRecord) model.MatchResult {
	if ea, eb := NormalizeEmail(a.Email), NormalizeEmail(b.Email); ea != "" && ea == eb {
		return model.MatchResult{IsMatch: true, Confidence: 1.0, Type: model.MatchEmail}
	}
	if oa, ob := NormalizeORCID(a.ORCID), NormalizeORCID(b.ORCID); oa != "" && oa == ob {
		return model.MatchResult{IsMatch: true, Confidence: 1.0, Type: model.MatchORCID}
	}

	na, nb := NormalizeName(a.Name), NormalizeName(b.Name)
	if na == "" || nb == "" {
		return model.NoMatch
	}

	if d.similarity == nil {
		if na == nb {
			return model.MatchResult{IsMatch: true, Confidence: exactNameConfidence, Type: model.MatchExactName}
		}
		return model.NoMatch
	}

	nameScore := d.similarity.Ratio(na, nb)
	if nameScore < d.nameThreshold {
		return model.NoMatch
	}

	ia, ib := normalizeInstitution(a.Institution), normalizeInstitution(b.Institution)
	if ia != "" && ib != "" {
		instScore := d.similarity.Ratio(ia, ib)
		if instScore >= d.institutionThreshold {
			return model.MatchResult{
				IsMatch:    true,
				Confidence: float64(nameScore+instScore) / 200,
				Type:       model.MatchFuzzyNameInstitution,
			}
		}
		return model.NoMatch
	}

	if nameScore >= nameOnlyThreshold {
		return model.MatchResult{
			IsMatch:    true,
			Confidence: float64(nameScore) / 100,
			Type:       model.MatchFuzzyName,
		}
	}
	return model.NoMatch
}
