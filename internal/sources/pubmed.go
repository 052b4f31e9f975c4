package sources

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bioleads/internal/config"
	"github.com/sells-group/bioleads/internal/model"
)

const (
	pubmedFetchBatch     = 100
	pubmedLookbackYears  = 5
	// NCBI allows 10 requests/s with an API key and 3 without.
	pubmedKeyedRateLimit = 10.0
)

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	institutionKeywords = []string{"university", "institute", "college", "hospital", "center", "centre", "school"}
	departmentKeywords  = []string{"department", "division", "lab", "laboratory", "group", "section"}
)

// PubMed searches recent articles through NCBI E-utilities and yields one
// lead per article, taken from its first author.
type PubMed struct {
	client *Client
	apiKey string
	now    func() time.Time
}

// NewPubMed creates a PubMed adapter. apiKey may be empty.
func NewPubMed(client *Client, apiKey string) *PubMed {
	return &PubMed{client: client, apiKey: apiKey, now: time.Now}
}

// Name implements Source.
func (p *PubMed) Name() string { return config.SourcePubMed }

// Fetch implements Source.
func (p *PubMed) Fetch(ctx context.Context, q Query) ([]*model.LeadRecord, error) {
	return fetchTerms(ctx, p.Name(), q, p.search)
}

type esearchResponse struct {
	Result struct {
		IDs []string `json:"idlist"`
	} `json:"esearchresult"`
}

type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID     string   `xml:"MedlineCitation>PMID" json:"pmid"`
	Title    string   `xml:"MedlineCitation>Article>ArticleTitle" json:"title"`
	Abstract []string `xml:"MedlineCitation>Article>Abstract>AbstractText" json:"abstract,omitempty"`
	Journal  string   `xml:"MedlineCitation>Article>Journal>Title" json:"journal,omitempty"`
	Year     string   `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate>Year" json:"year,omitempty"`
	// MedlineDate replaces Year for issues spanning a range, e.g. "2023 Nov-Dec".
	MedlineDate string         `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate>MedlineDate" json:"medline_date,omitempty"`
	Authors     []pubmedAuthor `xml:"MedlineCitation>Article>AuthorList>Author" json:"authors"`
	MeSH        []string       `xml:"MedlineCitation>MeshHeadingList>MeshHeading>DescriptorName" json:"mesh,omitempty"`
}

type pubmedAuthor struct {
	LastName     string             `xml:"LastName" json:"last_name"`
	ForeName     string             `xml:"ForeName" json:"fore_name,omitempty"`
	Affiliations []string           `xml:"AffiliationInfo>Affiliation" json:"affiliations,omitempty"`
	Identifiers  []pubmedIdentifier `xml:"Identifier" json:"identifiers,omitempty"`
}

type pubmedIdentifier struct {
	Source string `xml:"Source,attr" json:"source"`
	Value  string `xml:",chardata" json:"value"`
}

func (p *PubMed) params(v map[string]string) url.Values {
	out := url.Values{"db": {"pubmed"}}
	for k, val := range v {
		out.Set(k, val)
	}
	if p.apiKey != "" {
		out.Set("api_key", p.apiKey)
	}
	return out
}

func (p *PubMed) search(ctx context.Context, term string, limit int) ([]*model.LeadRecord, []string, error) {
	year := p.now().Year()
	var ids esearchResponse
	err := p.client.GetJSON(ctx, "/esearch.fcgi", p.params(map[string]string{
		"term":     term,
		"retmax":   strconv.Itoa(limit),
		"retmode":  "json",
		"sort":     "relevance",
		"datetype": "pdat",
		"mindate":  strconv.Itoa(year - pubmedLookbackYears),
		"maxdate":  strconv.Itoa(year),
	}), &ids)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pubmed: search %q", term)
	}

	var (
		leads []*model.LeadRecord
		keys  []string
	)
	pmids := ids.Result.IDs
	for start := 0; start < len(pmids); start += pubmedFetchBatch {
		batch := pmids[start:min(start+pubmedFetchBatch, len(pmids))]

		var set pubmedArticleSet
		err := p.client.GetXML(ctx, "/efetch.fcgi", p.params(map[string]string{
			"id":      strings.Join(batch, ","),
			"retmode": "xml",
			"rettype": "abstract",
		}), &set)
		if err != nil {
			if len(leads) == 0 {
				return nil, nil, eris.Wrapf(err, "pubmed: fetch articles for %q", term)
			}
			zap.L().Warn("pubmed: article fetch stopped early", zap.String("term", term), zap.Error(err))
			break
		}

		for _, a := range set.Articles {
			lead, err := parsePubMedArticle(a)
			if err != nil {
				zap.L().Debug("pubmed: skip unencodable article", zap.String("pmid", a.PMID), zap.Error(err))
				continue
			}
			if lead == nil {
				continue
			}
			leads = append(leads, lead)
			keys = append(keys, a.PMID)
		}
	}
	return leads, keys, nil
}

// parsePubMedArticle maps an article to a lead. Articles without a named
// author yield nil.
func parsePubMedArticle(a pubmedArticle) (*model.LeadRecord, error) {
	var authors []pubmedAuthor
	for _, au := range a.Authors {
		if strings.TrimSpace(au.LastName) != "" {
			authors = append(authors, au)
		}
	}
	if len(authors) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(a)
	if err != nil {
		return nil, eris.Wrap(err, "pubmed: encode raw article")
	}

	primary := authors[0]
	var affiliation string
	if len(primary.Affiliations) > 0 {
		affiliation = primary.Affiliations[0]
	}

	lead := newLead(config.SourcePubMed, raw)
	lead.Name = strings.TrimSpace(strings.TrimSpace(primary.ForeName) + " " + strings.TrimSpace(primary.LastName))
	lead.Email = firstAuthorEmail(authors)
	lead.ORCID = authorORCID(primary)
	lead.Institution = parseInstitution(affiliation)
	lead.Department = parseDepartment(affiliation)
	lead.Location = parseAffiliationLocation(affiliation)
	lead.ResearchFocus = topN(a.MeSH)
	lead.Publications = 1
	lead.PubDate = optional(articleYear(a))
	return lead, nil
}

// firstAuthorEmail returns the first email found in any author affiliation.
func firstAuthorEmail(authors []pubmedAuthor) *string {
	for _, au := range authors {
		for _, aff := range au.Affiliations {
			if m := emailRe.FindString(aff); m != "" {
				return &m
			}
		}
	}
	return nil
}

func authorORCID(au pubmedAuthor) *string {
	for _, id := range au.Identifiers {
		if strings.EqualFold(id.Source, "ORCID") {
			return optional(id.Value)
		}
	}
	return nil
}

func articleYear(a pubmedArticle) string {
	if y := strings.TrimSpace(a.Year); y != "" {
		return y
	}
	if d := strings.TrimSpace(a.MedlineDate); len(d) >= 4 {
		return d[:4]
	}
	return ""
}

func splitAffiliation(aff string) []string {
	var parts []string
	for _, p := range strings.Split(aff, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// parseInstitution picks the affiliation segment naming an institution,
// falling back to the second segment, then the first.
func parseInstitution(aff string) string {
	parts := splitAffiliation(aff)
	for _, p := range parts {
		if containsKeyword(p, institutionKeywords) {
			return p
		}
	}
	switch {
	case len(parts) >= 2:
		return parts[1]
	case len(parts) == 1:
		return parts[0]
	}
	return ""
}

func parseDepartment(aff string) *string {
	parts := splitAffiliation(aff)
	for _, p := range parts {
		if containsKeyword(p, departmentKeywords) {
			return optional(p)
		}
	}
	if len(parts) > 1 {
		return optional(parts[0])
	}
	return nil
}

// parseAffiliationLocation keeps the last two segments, typically city and
// country. A trailing email is dropped first.
func parseAffiliationLocation(aff string) *string {
	aff = strings.TrimRight(emailRe.ReplaceAllString(aff, ""), ". ")
	aff = strings.TrimRight(strings.TrimSuffix(aff, "Electronic address:"), ". ")
	parts := splitAffiliation(aff)
	if len(parts) < 2 {
		return nil
	}
	return optional(strings.Join(parts[len(parts)-2:], ", "))
}

func containsKeyword(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
