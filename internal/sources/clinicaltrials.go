package sources

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/bioleads/internal/config"
	"github.com/sells-group/bioleads/internal/model"
)

const ctMaxPage = 100

// ClinicalTrials searches ClinicalTrials.gov studies and yields one lead
// per study: its first overall official, or the lead sponsor when the study
// lists none.
type ClinicalTrials struct {
	client *Client
}

// NewClinicalTrials creates a ClinicalTrials.gov adapter.
func NewClinicalTrials(client *Client) *ClinicalTrials {
	return &ClinicalTrials{client: client}
}

// Name implements Source.
func (c *ClinicalTrials) Name() string { return config.SourceClinicalTrials }

// Fetch implements Source.
func (c *ClinicalTrials) Fetch(ctx context.Context, q Query) ([]*model.LeadRecord, error) {
	return fetchTerms(ctx, c.Name(), q, c.search)
}

type ctPage struct {
	Studies       []json.RawMessage `json:"studies"`
	NextPageToken string            `json:"nextPageToken"`
}

type ctStudy struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NCTID         string `json:"nctId"`
			BriefTitle    string `json:"briefTitle"`
			OfficialTitle string `json:"officialTitle"`
		} `json:"identificationModule"`
		StatusModule struct {
			OverallStatus   string `json:"overallStatus"`
			StartDateStruct struct {
				Date string `json:"date"`
			} `json:"startDateStruct"`
		} `json:"statusModule"`
		SponsorCollaboratorsModule struct {
			LeadSponsor struct {
				Name  string `json:"name"`
				Class string `json:"class"`
			} `json:"leadSponsor"`
		} `json:"sponsorCollaboratorsModule"`
		ContactsLocationsModule struct {
			OverallOfficials []struct {
				Name        string `json:"name"`
				Affiliation string `json:"affiliation"`
				Role        string `json:"role"`
			} `json:"overallOfficials"`
			Locations []struct {
				City    string `json:"city"`
				State   string `json:"state"`
				Country string `json:"country"`
			} `json:"locations"`
		} `json:"contactsLocationsModule"`
		ConditionsModule struct {
			Conditions []string `json:"conditions"`
			Keywords   []string `json:"keywords"`
		} `json:"conditionsModule"`
		DesignModule struct {
			Phases []string `json:"phases"`
		} `json:"designModule"`
	} `json:"protocolSection"`
}

func (c *ClinicalTrials) search(ctx context.Context, term string, limit int) ([]*model.LeadRecord, []string, error) {
	var (
		leads []*model.LeadRecord
		keys  []string
		token string
	)
	for len(leads) < limit {
		params := url.Values{}
		params.Set("query.term", term)
		params.Set("pageSize", strconv.Itoa(min(ctMaxPage, limit)))
		params.Set("format", "json")
		if token != "" {
			params.Set("pageToken", token)
		}

		var page ctPage
		if err := c.client.GetJSON(ctx, "/api/v2/studies", params, &page); err != nil {
			if len(leads) == 0 {
				return nil, nil, eris.Wrapf(err, "clinicaltrials: search %q", term)
			}
			zap.L().Warn("clinicaltrials: pagination stopped early", zap.String("term", term), zap.Error(err))
			break
		}
		if len(page.Studies) == 0 {
			break
		}

		for _, raw := range page.Studies {
			lead, key, err := parseStudy(raw)
			if err != nil {
				zap.L().Debug("clinicaltrials: skip unparseable study", zap.Error(err))
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

		token = page.NextPageToken
		if token == "" {
			break
		}
	}
	return leads, keys, nil
}

func parseStudy(raw json.RawMessage) (*model.LeadRecord, string, error) {
	var s ctStudy
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, "", eris.Wrap(err, "clinicaltrials: decode study")
	}
	p := s.ProtocolSection
	id := p.IdentificationModule
	sponsor := p.SponsorCollaboratorsModule.LeadSponsor

	var name, affiliation, role string
	if officials := p.ContactsLocationsModule.OverallOfficials; len(officials) > 0 {
		name = officials[0].Name
		affiliation = officials[0].Affiliation
		role = officials[0].Role
	}
	institution := affiliation
	if name == "" {
		name = sponsor.Name
	}
	if institution == "" {
		institution = sponsor.Name
	}
	if strings.TrimSpace(name) == "" {
		return nil, "", nil
	}

	lead := newLead(config.SourceClinicalTrials, raw)
	lead.Name = name
	lead.Institution = institution
	lead.Title = model.String(humanizeRole(role))
	if locs := p.ContactsLocationsModule.Locations; len(locs) > 0 {
		lead.Location = optional(joinNonEmpty(locs[0].City, locs[0].State, locs[0].Country))
	}
	focus := append(append([]string{}, p.ConditionsModule.Conditions...), p.ConditionsModule.Keywords...)
	lead.ResearchFocus = topN(focus)
	lead.PublicationDate = optional(p.StatusModule.StartDateStruct.Date)

	title := id.OfficialTitle
	if title == "" {
		title = id.BriefTitle
	}
	lead.ClinicalTrial = &model.ClinicalTrial{
		NCTID:        id.NCTID,
		Title:        title,
		Phase:        strings.Join(p.DesignModule.Phases, ", "),
		Status:       p.StatusModule.OverallStatus,
		SponsorName:  sponsor.Name,
		SponsorClass: sponsor.Class,
	}
	return lead, id.NCTID, nil
}

// humanizeRole turns a registry role code such as PRINCIPAL_INVESTIGATOR
// into "Principal Investigator".
func humanizeRole(role string) string {
	role = strings.TrimSpace(strings.ReplaceAll(role, "_", " "))
	if role == "" {
		return defaultTitle
	}
	return cases.Title(language.English).String(strings.ToLower(role))
}
