// Package sources fetches candidate leads from public research APIs:
// PubMed articles, OpenAlex authors, NIH RePORTER projects and
// ClinicalTrials.gov studies.
package sources

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bioleads/internal/config"
	"github.com/sells-group/bioleads/internal/model"
	"github.com/sells-group/bioleads/internal/resilience"
)

const (
	// maxResearchFocus caps the topics kept from any one source.
	maxResearchFocus = 10
	defaultTitle     = "Principal Investigator"
)

// Query is a search against every enabled source. MaxResults applies per term.
type Query struct {
	Terms      []string
	MaxResults int
}

// Source is a public data API that yields lead records.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]*model.LeadRecord, error)
}

// New builds the enabled sources in configuration order.
func New(cfg config.SourcesConfig) ([]Source, error) {
	out := make([]Source, 0, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		switch name {
		case config.SourcePubMed:
			ep := cfg.PubMed
			if ep.APIKey != "" && ep.RateLimit < pubmedKeyedRateLimit {
				ep.RateLimit = pubmedKeyedRateLimit
			}
			out = append(out, NewPubMed(clientFor(cfg, name, ep), ep.APIKey))
		case config.SourceOpenAlex:
			out = append(out, NewOpenAlex(clientFor(cfg, name, cfg.OpenAlex), cfg.Mailto))
		case config.SourceNIH:
			out = append(out, NewNIH(clientFor(cfg, name, cfg.NIH)))
		case config.SourceClinicalTrials:
			out = append(out, NewClinicalTrials(clientFor(cfg, name, cfg.ClinicalTrials)))
		default:
			return nil, eris.Errorf("sources: unknown source %q", name)
		}
	}
	return out, nil
}

func clientFor(cfg config.SourcesConfig, name string, ep config.EndpointConfig) *Client {
	ua := cfg.UserAgent
	if cfg.Mailto != "" {
		ua += " (mailto:" + cfg.Mailto + ")"
	}
	return NewClient(ClientOptions{
		Service:   name,
		BaseURL:   ep.BaseURL,
		UserAgent: ua,
		Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		RateLimit: ep.RateLimit,
		Burst:     ep.Burst,
		Retry:     resilience.NewPolicy(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs),
		Breaker: resilience.NewBreaker(cfg.Retry.BreakerThreshold,
			time.Duration(cfg.Retry.BreakerCooldownSecs)*time.Second),
	})
}

// fetchTerms runs search once per term and keeps the first record seen for
// each upstream key. A failing term is logged and skipped unless every term
// fails.
func fetchTerms(ctx context.Context, source string, q Query, search func(ctx context.Context, term string, limit int) ([]*model.LeadRecord, []string, error)) ([]*model.LeadRecord, error) {
	seen := make(map[string]bool)
	var (
		out     []*model.LeadRecord
		lastErr error
		failed  int
	)
	for _, term := range q.Terms {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrapf(err, "%s: fetch", source)
		}
		leads, keys, err := search(ctx, term, q.MaxResults)
		if err != nil {
			failed++
			lastErr = err
			zap.L().Warn("sources: search term failed",
				zap.String("source", source),
				zap.String("term", term),
				zap.Error(err),
			)
			continue
		}
		for i, lead := range leads {
			if keys[i] != "" && seen[keys[i]] {
				continue
			}
			seen[keys[i]] = true
			out = append(out, lead)
		}
	}
	if failed > 0 && failed == len(q.Terms) {
		return nil, eris.Wrapf(lastErr, "%s: all %d search terms failed", source, failed)
	}
	zap.L().Info("sources: fetch complete",
		zap.String("source", source),
		zap.Int("terms", len(q.Terms)),
		zap.Int("leads", len(out)),
	)
	return out, nil
}

// newLead stamps the fields every adapter sets.
func newLead(source string, raw json.RawMessage) *model.LeadRecord {
	return &model.LeadRecord{
		ID:      uuid.NewString(),
		Source:  source,
		RawData: raw,
	}
}

// optional returns nil for blank strings.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// joinNonEmpty joins the non-blank parts with ", ".
func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// topN trims blanks and keeps at most maxResearchFocus entries.
func topN(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
		if len(out) == maxResearchFocus {
			break
		}
	}
	return out
}

// isoDate keeps the calendar date of an upstream timestamp.
func isoDate(s string) *string {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	return optional(s)
}
