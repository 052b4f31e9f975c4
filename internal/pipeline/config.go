package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/bioleads/internal/config"
	"github.com/sells-group/bioleads/internal/enrich"
	"github.com/sells-group/bioleads/internal/linkage"
	"github.com/sells-group/bioleads/internal/scorer"
	"github.com/sells-group/bioleads/internal/sources"
)

// NewDeduplicator builds a linkage engine from configuration.
func NewDeduplicator(cfg config.LinkageConfig) *linkage.Deduplicator {
	opts := []linkage.Option{
		linkage.WithNameThreshold(cfg.NameThreshold),
		linkage.WithInstitutionThreshold(cfg.InstitutionThreshold),
	}
	if !cfg.Fuzzy {
		opts = append(opts, linkage.WithoutFuzzy())
	}
	if cfg.DedupeGrants {
		opts = append(opts, linkage.WithGrantDedupe())
	}
	return linkage.New(opts...)
}

// NewEngine builds a scoring engine from a validated weight profile.
func NewEngine(cfg config.ScoringConfig) (*scorer.Engine, error) {
	w, err := cfg.Weights()
	if err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: invalid scoring weights")
	}
	return scorer.New(w), nil
}

// NewEnricher builds the company enricher. The OpenAlex adapter already in
// srcs is reused for institution lookups when one is configured.
func NewEnricher(cfg *config.Config, srcs []sources.Source) (*enrich.CompanyEnricher, error) {
	opts := []enrich.Option{enrich.WithConcurrency(cfg.Enrich.Concurrency)}
	if cfg.Enrich.OpenAlexLookup {
		lookup, err := openAlexFor(cfg.Sources, srcs)
		if err != nil {
			return nil, err
		}
		opts = append(opts, enrich.WithLookup(lookup))
	}
	return enrich.New(opts...), nil
}

func openAlexFor(cfg config.SourcesConfig, srcs []sources.Source) (*sources.OpenAlex, error) {
	for _, s := range srcs {
		if oa, ok := s.(*sources.OpenAlex); ok {
			return oa, nil
		}
	}
	cfg.Enabled = []string{config.SourceOpenAlex}
	built, err := sources.New(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build institution lookup")
	}
	return built[0].(*sources.OpenAlex), nil
}

// FromConfig assembles a Pipeline with every enabled source.
func FromConfig(cfg *config.Config) (*Pipeline, error) {
	srcs, err := sources.New(cfg.Sources)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithConcurrency(cfg.Sources.Concurrency)}
	if cfg.Enrich.Enabled {
		enricher, err := NewEnricher(cfg, srcs)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithEnricher(enricher))
	}
	return New(srcs, NewDeduplicator(cfg.Linkage), engine, opts...), nil
}
