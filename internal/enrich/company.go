// Package enrich attaches institution profiles and ideal-customer fit to
// leads.
package enrich

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/bioleads/internal/metrics"
	"github.com/sells-group/bioleads/internal/model"
)

// Institution types.
const (
	TypeAcademic      = "academic"
	TypeMedicalCenter = "medical_center"
	TypePharma        = "pharma"
	TypeBiotech       = "biotech"
	TypeCRO           = "cro"
	TypeCDMO          = "cdmo"
	TypeGovernment    = "government"
	TypeNonprofit     = "nonprofit"
	TypeUnknown       = "unknown"
)

// Size buckets.
const (
	SizeSmall      = "small"
	SizeMedium     = "medium"
	SizeLarge      = "large"
	SizeEnterprise = "enterprise"
)

type typeIndicator struct {
	kind     string
	keywords []string
}

// typeIndicators are checked in order; the first type with a matching
// keyword wins.
var typeIndicators = []typeIndicator{
	{TypeAcademic, []string{"university", "college", "institute of technology", "school of medicine", "medical school", "research institute"}},
	{TypeMedicalCenter, []string{"hospital", "medical center", "medical centre", "clinic", "health system"}},
	{TypePharma, []string{"pharmaceutical", "pharma"}},
	{TypeBiotech, []string{"biotechnology", "biotech", "biosciences", "biopharmaceutical", "biologics"}},
	{TypeCRO, []string{"contract research", "cro ", "clinical research organization", "preclinical services"}},
	{TypeCDMO, []string{"contract manufacturing", "cdmo", "drug manufacturing"}},
	{TypeGovernment, []string{"nih", "fda", "cdc", "national institute", "federal", "government"}},
	{TypeNonprofit, []string{"foundation", "nonprofit", "non-profit", "ngo"}},
}

var majorPharma = []string{
	"pfizer", "novartis", "roche", "merck", "johnson & johnson", "sanofi",
	"astrazeneca", "gsk", "glaxosmithkline", "abbvie", "eli lilly", "bristol-myers squibb",
	"amgen", "gilead", "biogen", "regeneron", "bayer", "takeda", "novo nordisk",
	"boehringer ingelheim", "astellas", "daiichi sankyo", "otsuka",
}

// lookupTypes are the inferred types worth an OpenAlex institution lookup.
var lookupTypes = map[string]bool{
	TypeAcademic:      true,
	TypeMedicalCenter: true,
	TypeGovernment:    true,
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

// InstitutionLookup resolves an institution name against an external
// registry. A nil profile with a nil error means no match.
type InstitutionLookup interface {
	LookupInstitution(ctx context.Context, name string) (*model.CompanyInfo, error)
}

// CompanyEnricher infers institution profiles from names, optionally
// refined by an InstitutionLookup. Profiles are cached per enricher.
type CompanyEnricher struct {
	lookup      InstitutionLookup
	concurrency int

	mu    sync.Mutex
	cache map[string]model.CompanyInfo
}

// Option configures a CompanyEnricher.
type Option func(*CompanyEnricher)

// WithLookup enables registry lookups for academic, medical and
// government institutions.
func WithLookup(l InstitutionLookup) Option {
	return func(e *CompanyEnricher) { e.lookup = l }
}

// WithConcurrency bounds parallel lookups in EnrichBatch.
func WithConcurrency(n int) Option {
	return func(e *CompanyEnricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New creates a CompanyEnricher with an empty cache.
func New(opts ...Option) *CompanyEnricher {
	e := &CompanyEnricher{
		concurrency: 4,
		cache:       make(map[string]model.CompanyInfo),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func cacheKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Enrich returns the profile for an institution name. Lookup failures are
// logged and fall back to the name-based profile.
func (e *CompanyEnricher) Enrich(ctx context.Context, name string) model.CompanyInfo {
	if strings.TrimSpace(name) == "" {
		return model.CompanyInfo{Name: "Unknown"}
	}

	key := cacheKey(name)
	e.mu.Lock()
	cached, ok := e.cache[key]
	e.mu.Unlock()
	metrics.IncEnrichCache(ok)
	if ok {
		return cached
	}

	info := AnalyzeName(name)
	if e.lookup != nil && lookupTypes[info.Type] {
		found, err := e.lookup.LookupInstitution(ctx, name)
		switch {
		case err != nil:
			zap.L().Debug("enrich: institution lookup failed",
				zap.String("institution", name),
				zap.Error(err),
			)
		case found != nil:
			info = mergeInfo(info, *found)
		}
	}

	e.mu.Lock()
	e.cache[key] = info
	e.mu.Unlock()
	return info
}

// CacheSize returns the number of cached institutions.
func (e *CompanyEnricher) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// EnrichBatch sets CompanyInfo, ICPScore and ICPMatch on every lead that
// names an institution. Each distinct institution is resolved once.
func (e *CompanyEnricher) EnrichBatch(ctx context.Context, leads []*model.LeadRecord) error {
	var names []string
	seen := make(map[string]bool)
	for _, l := range leads {
		key := cacheKey(l.Institution)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, l.Institution)
	}

	profiles := make([]model.CompanyInfo, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			profiles[i] = e.Enrich(gctx, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	byKey := make(map[string]model.CompanyInfo, len(names))
	for i, name := range names {
		byKey[cacheKey(name)] = profiles[i]
	}

	var matched int
	for _, l := range leads {
		info, ok := byKey[cacheKey(l.Institution)]
		if !ok {
			continue
		}
		icp := EvaluateICP(info)
		l.CompanyInfo = &info
		l.ICPScore = model.Float(icp.Score)
		l.ICPMatch = model.Bool(icp.Match)
		if icp.Match {
			matched++
		}
	}

	zap.L().Info("enrich: batch complete",
		zap.Int("leads", len(leads)),
		zap.Int("institutions", len(names)),
		zap.Int("icp_matches", matched),
	)
	return nil
}

// foldName lowercases s and strips diacritics so "Université" matches
// "universite".
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// AnalyzeName infers type, size and a likely website from the name alone.
func AnalyzeName(name string) model.CompanyInfo {
	lower := foldName(name)

	kind := TypeUnknown
	for _, ind := range typeIndicators {
		if containsAny(lower, ind.keywords) {
			kind = ind.kind
			break
		}
	}
	if containsAny(lower, majorPharma) {
		kind = TypePharma
	}

	return model.CompanyInfo{
		Name:    name,
		Type:    kind,
		Size:    sizeForType(kind),
		Website: guessWebsite(lower, kind),
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func sizeForType(kind string) string {
	switch kind {
	case TypePharma:
		return SizeEnterprise
	case TypeAcademic, TypeMedicalCenter:
		return SizeLarge
	}
	return SizeMedium
}

// guessWebsite builds a homepage from the first word of a folded name.
// "University of X" names are too ambiguous to guess.
func guessWebsite(folded, kind string) string {
	words := strings.Fields(nonAlnum.ReplaceAllString(folded, ""))
	if len(words) == 0 {
		return ""
	}
	if kind == TypeAcademic {
		if strings.Contains(folded, "university of") {
			return ""
		}
		return "https://www." + words[0] + ".edu"
	}
	return "https://www." + words[0] + ".com"
}

// mergeInfo prefers looked-up values, keeping the name-based ones where
// the lookup is silent.
func mergeInfo(base, found model.CompanyInfo) model.CompanyInfo {
	out := base
	if found.Name != "" {
		out.Name = found.Name
	}
	if found.Type != "" && found.Type != TypeUnknown {
		out.Type = found.Type
	}
	if found.Size != "" {
		out.Size = found.Size
	}
	if found.Website != "" {
		out.Website = found.Website
	}
	if found.Description != "" {
		out.Description = found.Description
	}
	if len(found.FocusAreas) > 0 {
		out.FocusAreas = found.FocusAreas
	}
	out.IsPublic = base.IsPublic || found.IsPublic
	return out
}
