package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bioleads/internal/model"
)

type fakeLookup struct {
	mu    sync.Mutex
	calls []string
	info  *model.CompanyInfo
	err   error
}

func (f *fakeLookup) LookupInstitution(_ context.Context, name string) (*model.CompanyInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.info == nil {
		return nil, f.err
	}
	c := *f.info
	return &c, f.err
}

func TestAnalyzeName(t *testing.T) {
	tests := []struct {
		name        string
		institution string
		wantType    string
		wantSize    string
		wantWebsite string
	}{
		{"academic", "Stanford University", TypeAcademic, SizeLarge, "https://www.stanford.edu"},
		{"university of", "University of California", TypeAcademic, SizeLarge, ""},
		{"medical school", "Harvard Medical School", TypeAcademic, SizeLarge, "https://www.harvard.edu"},
		{"hospital", "Massachusetts General Hospital", TypeMedicalCenter, SizeLarge, "https://www.massachusetts.com"},
		{"major pharma overrides", "Pfizer Inc.", TypePharma, SizeEnterprise, "https://www.pfizer.com"},
		{"pharma keyword", "Acme Pharmaceuticals", TypePharma, SizeEnterprise, "https://www.acme.com"},
		{"biotech", "Emulate Biosciences", TypeBiotech, SizeMedium, "https://www.emulate.com"},
		{"cro", "Charles River Contract Research", TypeCRO, SizeMedium, "https://www.charles.com"},
		{"clinic substring", "Preclinical Services Ltd", TypeMedicalCenter, SizeLarge, "https://www.preclinical.com"},
		{"government", "National Institute of Environmental Health", TypeGovernment, SizeMedium, "https://www.national.com"},
		{"nonprofit", "Gates Foundation", TypeNonprofit, SizeMedium, "https://www.gates.com"},
		{"unknown", "Acme Labs", TypeUnknown, SizeMedium, "https://www.acme.com"},
		{"accents folded", "Montréal Heart Hospital", TypeMedicalCenter, SizeLarge, "https://www.montreal.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := AnalyzeName(tt.institution)
			assert.Equal(t, tt.institution, info.Name)
			assert.Equal(t, tt.wantType, info.Type)
			assert.Equal(t, tt.wantSize, info.Size)
			assert.Equal(t, tt.wantWebsite, info.Website)
		})
	}
}

func TestEnrichEmptyName(t *testing.T) {
	e := New()
	assert.Equal(t, model.CompanyInfo{Name: "Unknown"}, e.Enrich(context.Background(), "  "))
	assert.Equal(t, 0, e.CacheSize())
}

func TestEnrichCachesByNormalizedName(t *testing.T) {
	lookup := &fakeLookup{info: &model.CompanyInfo{
		Name:       "Stanford University",
		Type:       TypeAcademic,
		Size:       SizeEnterprise,
		FocusAreas: []string{"Drug discovery"},
	}}
	e := New(WithLookup(lookup))

	first := e.Enrich(context.Background(), "Stanford University")
	second := e.Enrich(context.Background(), "  stanford university ")

	assert.Equal(t, first, second)
	assert.Len(t, lookup.calls, 1)
	assert.Equal(t, 1, e.CacheSize())
	assert.Equal(t, SizeEnterprise, first.Size)
	assert.Equal(t, "https://www.stanford.edu", first.Website)
	assert.Equal(t, []string{"Drug discovery"}, first.FocusAreas)
}

func TestEnrichSkipsLookupForCompanies(t *testing.T) {
	lookup := &fakeLookup{}
	e := New(WithLookup(lookup))

	info := e.Enrich(context.Background(), "Novartis AG")
	assert.Equal(t, TypePharma, info.Type)
	assert.Empty(t, lookup.calls)
}

func TestEnrichLookupFailureFallsBack(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("openalex down")}
	e := New(WithLookup(lookup))

	info := e.Enrich(context.Background(), "Boston Children's Hospital")
	assert.Equal(t, TypeMedicalCenter, info.Type)
	assert.Equal(t, SizeLarge, info.Size)
	assert.Len(t, lookup.calls, 1)
}

func TestMergeInfo(t *testing.T) {
	base := model.CompanyInfo{Name: "mgh", Type: TypeMedicalCenter, Size: SizeLarge, Website: "https://www.mgh.com", IsPublic: true}
	found := model.CompanyInfo{Name: "Massachusetts General Hospital", Type: TypeUnknown, Description: "Teaching hospital"}

	got := mergeInfo(base, found)
	assert.Equal(t, model.CompanyInfo{
		Name:        "Massachusetts General Hospital",
		Type:        TypeMedicalCenter,
		Size:        SizeLarge,
		Website:     "https://www.mgh.com",
		Description: "Teaching hospital",
		IsPublic:    true,
	}, got)
}

func TestEnrichBatch(t *testing.T) {
	lookup := &fakeLookup{info: &model.CompanyInfo{
		Name:       "Harvard University",
		Type:       TypeAcademic,
		Size:       SizeEnterprise,
		FocusAreas: []string{"Toxicology", "Pharmacology", "Biology"},
	}}
	e := New(WithLookup(lookup), WithConcurrency(2))

	leads := []*model.LeadRecord{
		{Name: "Jane Smith", Institution: "Harvard University"},
		{Name: "Bob Lee", Institution: "harvard university "},
		{Name: "Ann Wu", Institution: "Pfizer"},
		{Name: "No Affiliation"},
	}
	require.NoError(t, e.EnrichBatch(context.Background(), leads))

	assert.Len(t, lookup.calls, 1)

	jane := leads[0]
	require.NotNil(t, jane.CompanyInfo)
	assert.Equal(t, TypeAcademic, jane.CompanyInfo.Type)
	assert.Equal(t, 45.0, *jane.ICPScore) // 15 type + 20 size + 10 focus
	assert.True(t, *jane.ICPMatch)
	assert.Equal(t, jane.CompanyInfo, leads[1].CompanyInfo)

	pfizer := leads[2]
	assert.Equal(t, TypePharma, pfizer.CompanyInfo.Type)
	assert.Equal(t, 50.0, *pfizer.ICPScore)

	assert.Nil(t, leads[3].CompanyInfo)
	assert.Nil(t, leads[3].ICPScore)
	assert.Nil(t, leads[3].ICPMatch)
}

func TestEnrichBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New().EnrichBatch(ctx, []*model.LeadRecord{{Institution: "MIT"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateICP(t *testing.T) {
	tests := []struct {
		name      string
		info      model.CompanyInfo
		wantScore float64
		wantMatch bool
		wantPct   int
		reasons   int
	}{
		{"empty", model.CompanyInfo{}, 0, false, 0, 0},
		{"pharma enterprise", model.CompanyInfo{Type: TypePharma, Size: SizeEnterprise}, 50, true, 71, 2},
		{"unknown medium", model.CompanyInfo{Type: TypeUnknown, Size: SizeMedium}, 10, false, 14, 1},
		{"academic at threshold", model.CompanyInfo{
			Type: TypeAcademic, Size: SizeLarge,
			FocusAreas: []string{"Drug Discovery", "Stem cell biology", "Physics"},
		}, 40, true, 57, 3},
		{"focus capped", model.CompanyInfo{
			Type: TypeBiotech, Size: SizeSmall,
			FocusAreas: []string{"toxicology", "pharmacology", "cell biology", "cancer research", "stem cell", "drug discovery"},
		}, 50, true, 71, 3},
		{"maximum", model.CompanyInfo{
			Type: TypePharma, Size: SizeEnterprise,
			FocusAreas: []string{"toxicology", "pharmacology", "cell biology", "cancer research"},
		}, 70, true, 100, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateICP(tt.info)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantMatch, got.Match)
			assert.Equal(t, tt.wantPct, got.Percentage)
			assert.Len(t, got.Reasons, tt.reasons)
			assert.Equal(t, float64(MaxICPScore), got.MaxScore)
		})
	}
}

func TestEvaluateICPReasons(t *testing.T) {
	got := EvaluateICP(model.CompanyInfo{Type: TypeCRO, Size: SizeLarge, FocusAreas: []string{"Toxicology"}})
	assert.Equal(t, []string{
		"Industry type: cro (+20)",
		"Company size: large (+15)",
		"Relevant focus areas: 1 (+5)",
	}, got.Reasons)
}
