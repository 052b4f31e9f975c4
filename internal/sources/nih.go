package sources

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bioleads/internal/config"
	"github.com/sells-group/bioleads/internal/model"
)

const (
	nihMaxPage     = 500
	nihFiscalYears = 3
)

// nihActivityCodes are the grant mechanisms most likely to fund
// discovery-stage work.
var nihActivityCodes = []string{"R01", "R21", "R43", "R44", "U01", "U19", "R35", "DP2"}

// NIH searches active NIH RePORTER projects and yields one lead per
// contact PI.
type NIH struct {
	client *Client
	now    func() time.Time
}

// NewNIH creates an NIH RePORTER adapter.
func NewNIH(client *Client) *NIH {
	return &NIH{client: client, now: time.Now}
}

// Name implements Source.
func (n *NIH) Name() string { return config.SourceNIH }

// Fetch implements Source.
func (n *NIH) Fetch(ctx context.Context, q Query) ([]*model.LeadRecord, error) {
	return fetchTerms(ctx, n.Name(), q, n.search)
}

type nihTextSearch struct {
	Operator    string `json:"operator"`
	SearchField string `json:"search_field"`
	SearchText  string `json:"search_text"`
}

type nihCriteria struct {
	AdvancedTextSearch nihTextSearch `json:"advanced_text_search"`
	FiscalYears        []int         `json:"fiscal_years"`
	ActivityCodes      []string      `json:"activity_codes"`
	IsActive           bool          `json:"is_active"`
}

type nihRequest struct {
	Criteria  nihCriteria `json:"criteria"`
	Offset    int         `json:"offset"`
	Limit     int         `json:"limit"`
	SortField string      `json:"sort_field"`
	SortOrder string      `json:"sort_order"`
}

type nihResponse struct {
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
	Results []json.RawMessage `json:"results"`
}

type nihProject struct {
	ProjectNum       string  `json:"project_num"`
	ProjectTitle     string  `json:"project_title"`
	AwardAmount      float64 `json:"award_amount"`
	ProjectStartDate string  `json:"project_start_date"`
	ProjectEndDate   string  `json:"project_end_date"`
	ActivityCode     string  `json:"activity_code"`
	DeptType         string  `json:"dept_type"`
	Terms            string  `json:"terms"`
	AgencyICAdmin    struct {
		Name string `json:"name"`
	} `json:"agency_ic_admin"`
	Organization struct {
		OrgName    string `json:"org_name"`
		OrgDept    string `json:"org_dept"`
		OrgCity    string `json:"org_city"`
		OrgState   string `json:"org_state"`
		OrgCountry string `json:"org_country"`
	} `json:"organization"`
	PrincipalInvestigators []struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Title    string `json:"title"`
		ORCID    string `json:"orcid"`
	} `json:"principal_investigators"`
}

func (n *NIH) fiscalYears() []int {
	year := n.now().Year()
	years := make([]int, 0, nihFiscalYears+1)
	for y := year - nihFiscalYears; y <= year; y++ {
		years = append(years, y)
	}
	return years
}

func (n *NIH) search(ctx context.Context, term string, limit int) ([]*model.LeadRecord, []string, error) {
	var (
		leads []*model.LeadRecord
		keys  []string
	)
	pageSize := min(nihMaxPage, limit)
	for offset := 0; len(leads) < limit; {
		req := nihRequest{
			Criteria: nihCriteria{
				AdvancedTextSearch: nihTextSearch{Operator: "and", SearchField: "all", SearchText: term},
				FiscalYears:        n.fiscalYears(),
				ActivityCodes:      nihActivityCodes,
				IsActive:           true,
			},
			Offset:    offset,
			Limit:     pageSize,
			SortField: "project_start_date",
			SortOrder: "desc",
		}

		var resp nihResponse
		if err := n.client.PostJSON(ctx, "/v2/projects/search", req, &resp); err != nil {
			if len(leads) == 0 {
				return nil, nil, eris.Wrapf(err, "nih: search %q", term)
			}
			zap.L().Warn("nih: pagination stopped early", zap.String("term", term), zap.Error(err))
			break
		}
		if len(resp.Results) == 0 {
			break
		}

		for _, raw := range resp.Results {
			lead, key, err := parseNIHProject(raw)
			if err != nil {
				zap.L().Debug("nih: skip unparseable project", zap.Error(err))
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
		offset += len(resp.Results)
		if offset >= resp.Meta.Total {
			break
		}
	}
	return leads, keys, nil
}

func parseNIHProject(raw json.RawMessage) (*model.LeadRecord, string, error) {
	var p nihProject
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, "", eris.Wrap(err, "nih: decode project")
	}
	if len(p.PrincipalInvestigators) == 0 || p.PrincipalInvestigators[0].FullName == "" {
		return nil, "", nil
	}
	pi := p.PrincipalInvestigators[0]
	org := p.Organization

	lead := newLead(config.SourceNIH, raw)
	lead.Name = pi.FullName
	lead.Email = optional(pi.Email)
	lead.ORCID = optional(pi.ORCID)
	lead.Title = optional(pi.Title)
	if lead.Title == nil {
		lead.Title = model.String(defaultTitle)
	}
	lead.Institution = org.OrgName
	lead.Department = optional(org.OrgDept)
	if lead.Department == nil {
		lead.Department = optional(p.DeptType)
	}
	lead.Location = optional(joinNonEmpty(org.OrgCity, org.OrgState, org.OrgCountry))
	lead.ResearchFocus = topN(strings.Split(p.Terms, ";"))
	lead.Grants = []model.Grant{{
		ProjectNumber: p.ProjectNum,
		Title:         p.ProjectTitle,
		AwardAmount:   p.AwardAmount,
		StartDate:     isoDate(p.ProjectStartDate),
		EndDate:       isoDate(p.ProjectEndDate),
		Agency:        p.AgencyICAdmin.Name,
	}}
	return lead, p.ProjectNum, nil
}
