package sources

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bioleads/internal/config"
	"github.com/sells-group/bioleads/internal/model"
)

const (
	openAlexMaxPage   = 200
	openAlexMinWorks  = "works_count:>5"
	openAlexStartPage = "*"
)

// OpenAlex searches OpenAlex authors.
type OpenAlex struct {
	client *Client
	mailto string
}

// NewOpenAlex creates an OpenAlex adapter. mailto joins the polite pool.
func NewOpenAlex(client *Client, mailto string) *OpenAlex {
	return &OpenAlex{client: client, mailto: mailto}
}

// Name implements Source.
func (o *OpenAlex) Name() string { return config.SourceOpenAlex }

// Fetch implements Source.
func (o *OpenAlex) Fetch(ctx context.Context, q Query) ([]*model.LeadRecord, error) {
	return fetchTerms(ctx, o.Name(), q, o.search)
}

type openAlexPage struct {
	Meta struct {
		Count      int    `json:"count"`
		NextCursor string `json:"next_cursor"`
	} `json:"meta"`
	Results []json.RawMessage `json:"results"`
}

type openAlexAuthor struct {
	ID                    string `json:"id"`
	DisplayName           string `json:"display_name"`
	ORCID                 string `json:"orcid"`
	WorksCount            int    `json:"works_count"`
	CitedByCount          int    `json:"cited_by_count"`
	LastKnownInstitutions []struct {
		DisplayName string `json:"display_name"`
		CountryCode string `json:"country_code"`
		Geo         *struct {
			City    string `json:"city"`
			Region  string `json:"region"`
			Country string `json:"country"`
		} `json:"geo"`
	} `json:"last_known_institutions"`
	XConcepts []struct {
		DisplayName string  `json:"display_name"`
		Score       float64 `json:"score"`
	} `json:"x_concepts"`
}

func (o *OpenAlex) search(ctx context.Context, term string, limit int) ([]*model.LeadRecord, []string, error) {
	var (
		leads []*model.LeadRecord
		keys  []string
	)
	cursor := openAlexStartPage
	for len(leads) < limit && cursor != "" {
		params := url.Values{}
		params.Set("search", term)
		params.Set("filter", openAlexMinWorks)
		params.Set("per_page", strconv.Itoa(min(openAlexMaxPage, limit)))
		params.Set("cursor", cursor)
		if o.mailto != "" {
			params.Set("mailto", o.mailto)
		}

		var page openAlexPage
		if err := o.client.GetJSON(ctx, "/authors", params, &page); err != nil {
			if len(leads) == 0 {
				return nil, nil, eris.Wrapf(err, "openalex: search %q", term)
			}
			zap.L().Warn("openalex: pagination stopped early", zap.String("term", term), zap.Error(err))
			break
		}
		if len(page.Results) == 0 {
			break
		}

		for _, raw := range page.Results {
			lead, key, err := parseOpenAlexAuthor(raw)
			if err != nil {
				zap.L().Debug("openalex: skip unparseable author", zap.Error(err))
				continue
			}
			if lead == nil {
				continue
			}
			leads = append(leads, lead)
			keys = append(keys, key)
			if len(leads) == limit {
				break
			}
		}
		cursor = page.Meta.NextCursor
	}
	return leads, keys, nil
}

func parseOpenAlexAuthor(raw json.RawMessage) (*model.LeadRecord, string, error) {
	var a openAlexAuthor
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, "", eris.Wrap(err, "openalex: decode author")
	}
	if a.DisplayName == "" {
		return nil, "", nil
	}

	lead := newLead(config.SourceOpenAlex, raw)
	lead.Name = a.DisplayName
	lead.ORCID = optional(a.ORCID)
	lead.Publications = a.WorksCount
	lead.CitedByCount = a.CitedByCount

	if len(a.LastKnownInstitutions) > 0 {
		inst := a.LastKnownInstitutions[0]
		lead.Institution = inst.DisplayName
		loc := inst.CountryCode
		if inst.Geo != nil {
			if joined := joinNonEmpty(inst.Geo.City, inst.Geo.Region, inst.Geo.Country); joined != "" {
				loc = joined
			}
		}
		lead.Location = optional(loc)
	}

	concepts := make([]string, 0, len(a.XConcepts))
	for _, c := range a.XConcepts {
		concepts = append(concepts, c.DisplayName)
	}
	lead.ResearchFocus = topN(concepts)

	return lead, a.ID, nil
}

type openAlexInstitution struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	HomepageURL string `json:"homepage_url"`
	Description string `json:"description"`
	WorksCount  int    `json:"works_count"`
	XConcepts   []struct {
		DisplayName string `json:"display_name"`
	} `json:"x_concepts"`
}

// LookupInstitution returns the best OpenAlex match for name as a company
// profile, or nil when OpenAlex has no match.
func (o *OpenAlex) LookupInstitution(ctx context.Context, name string) (*model.CompanyInfo, error) {
	params := url.Values{}
	params.Set("search", name)
	params.Set("per_page", "1")
	if o.mailto != "" {
		params.Set("mailto", o.mailto)
	}

	var page struct {
		Results []openAlexInstitution `json:"results"`
	}
	if err := o.client.GetJSON(ctx, "/institutions", params, &page); err != nil {
		return nil, eris.Wrapf(err, "openalex: lookup institution %q", name)
	}
	if len(page.Results) == 0 {
		return nil, nil
	}
	inst := page.Results[0]

	info := &model.CompanyInfo{
		Name:        inst.DisplayName,
		Type:        institutionKind(inst.Type),
		Size:        sizeFromWorks(inst.WorksCount),
		Website:     inst.HomepageURL,
		Description: inst.Description,
	}
	if info.Name == "" {
		info.Name = name
	}
	areas := make([]string, 0, len(inst.XConcepts))
	for _, c := range inst.XConcepts {
		areas = append(areas, c.DisplayName)
	}
	info.FocusAreas = topN(areas)
	return info, nil
}

// institutionKind maps an OpenAlex institution type onto an enrichment type.
func institutionKind(openAlexType string) string {
	t := strings.ToLower(openAlexType)
	switch {
	case strings.Contains(t, "company"):
		return "biotech"
	case strings.Contains(t, "government"):
		return "government"
	case strings.Contains(t, "healthcare"):
		return "medical_center"
	case strings.Contains(t, "nonprofit"):
		return "nonprofit"
	}
	return "academic"
}

func sizeFromWorks(works int) string {
	switch {
	case works > 100_000:
		return "enterprise"
	case works > 10_000:
		return "large"
	case works > 1_000:
		return "medium"
	}
	return "small"
}
