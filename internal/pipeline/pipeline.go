// Package pipeline runs the lead generation stages: fetch from sources,
// link duplicates, enrich institutions and score propensity.
package pipeline

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bioleads/internal/linkage"
	"github.com/sells-group/bioleads/internal/metrics"
	"github.com/sells-group/bioleads/internal/model"
	"github.com/sells-group/bioleads/internal/scorer"
	"github.com/sells-group/bioleads/internal/sources"
)

// Stage names.
const (
	StageSources    = "sources"
	StageLinkage    = "linkage"
	StageEnrichment = "enrichment"
	StageScoring    = "scoring"
)

// Stage statuses.
const (
	StatusComplete = "complete"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Enricher attaches institution data to leads in place.
type Enricher interface {
	EnrichBatch(ctx context.Context, leads []*model.LeadRecord) error
}

// StageResult records one stage of a run.
type StageResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Leads      int    `json:"leads"`
	Error      string `json:"error,omitempty"`
}

// Result holds the output of every stage. Deduplicated keeps linkage order;
// Scored holds the same records sorted by score.
type Result struct {
	Raw          []*model.LeadRecord `json:"-"`
	Deduplicated []*model.LeadRecord `json:"-"`
	Scored       []*model.LeadRecord `json:"leads"`
	Stages       []StageResult       `json:"stages"`
	Summary      Summary             `json:"summary"`
}

// Pipeline wires source adapters to the linkage, enrichment and scoring
// engines.
type Pipeline struct {
	sources     []sources.Source
	dedupe      *linkage.Deduplicator
	engine      *scorer.Engine
	enricher    Enricher
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEnricher enables the enrichment stage.
func WithEnricher(e Enricher) Option {
	return func(p *Pipeline) { p.enricher = e }
}

// WithConcurrency bounds how many sources are fetched at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New creates a Pipeline.
func New(srcs []sources.Source, dedupe *linkage.Deduplicator, engine *scorer.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		sources:     srcs,
		dedupe:      dedupe,
		engine:      engine,
		concurrency: 4,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Fetch runs every source concurrently and concatenates their leads in
// source order. A failing source is logged and skipped; Fetch fails only
// when ctx ends or every source fails.
func (p *Pipeline) Fetch(ctx context.Context, q sources.Query) ([]*model.LeadRecord, error) {
	if len(p.sources) == 0 {
		return nil, eris.New("pipeline: no sources configured")
	}

	results := make([][]*model.LeadRecord, len(p.sources))
	var (
		mu      sync.Mutex
		failed  int
		lastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, src := range p.sources {
		g.Go(func() error {
			start := time.Now()
			leads, err := src.Fetch(gctx, q)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				metrics.IncSourceFailure(src.Name())
				zap.L().Error("pipeline: source failed, skipping",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
				mu.Lock()
				failed++
				lastErr = err
				mu.Unlock()
				return nil
			}
			metrics.AddSourceLeads(src.Name(), len(leads))
			zap.L().Info("pipeline: source complete",
				zap.String("source", src.Name()),
				zap.Int("leads", len(leads)),
				zap.Duration("elapsed", time.Since(start)),
			)
			results[i] = leads
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch")
	}
	if failed == len(p.sources) {
		return nil, eris.Wrap(lastErr, "pipeline: every source failed")
	}

	var raw []*model.LeadRecord
	for _, r := range results {
		raw = append(raw, r...)
	}
	return raw, nil
}

// Run fetches from every source and processes the combined leads.
func (p *Pipeline) Run(ctx context.Context, q sources.Query) (*Result, error) {
	start := time.Now()
	raw, err := p.Fetch(ctx, q)
	stage := StageResult{
		Name:       StageSources,
		Status:     StatusComplete,
		DurationMs: time.Since(start).Milliseconds(),
		Leads:      len(raw),
	}
	metrics.ObserveStage(StageSources, time.Since(start), len(raw))
	if err != nil {
		return nil, err
	}

	res, err := p.Process(ctx, raw)
	if err != nil {
		return nil, err
	}
	res.Stages = append([]StageResult{stage}, res.Stages...)
	return res, nil
}

// Process links, enriches and scores leads that were already fetched.
// Enrichment and scoring mutate the deduplicated records in place.
func (p *Pipeline) Process(ctx context.Context, raw []*model.LeadRecord) (*Result, error) {
	res := &Result{Raw: raw}
	log := zap.L().With(zap.Int("raw_leads", len(raw)))

	track := func(name string, fn func() (int, error)) error {
		start := time.Now()
		n, err := fn()
		elapsed := time.Since(start)
		sr := StageResult{Name: name, Status: StatusComplete, DurationMs: elapsed.Milliseconds(), Leads: n}
		if err != nil {
			sr.Status = StatusFailed
			sr.Error = err.Error()
			log.Error("pipeline: stage failed", zap.String("stage", name), zap.Error(err))
		} else {
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int("leads", n),
				zap.Int64("duration_ms", sr.DurationMs),
			)
		}
		metrics.ObserveStage(name, elapsed, n)
		res.Stages = append(res.Stages, sr)
		return err
	}

	_ = track(StageLinkage, func() (int, error) {
		res.Deduplicated = p.dedupe.Deduplicate(raw)
		return len(res.Deduplicated), nil
	})

	if p.enricher == nil {
		res.Stages = append(res.Stages, StageResult{Name: StageEnrichment, Status: StatusSkipped, Leads: len(res.Deduplicated)})
	} else {
		err := track(StageEnrichment, func() (int, error) {
			return len(res.Deduplicated), p.enricher.EnrichBatch(ctx, res.Deduplicated)
		})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: enrichment")
		}
	}

	_ = track(StageScoring, func() (int, error) {
		res.Scored = p.engine.ScoreBatch(slices.Clone(res.Deduplicated))
		return len(res.Scored), nil
	})

	res.Summary = Summarize(res.Raw, res.Deduplicated, res.Scored)
	metrics.SetTierCounts(tierLabels(res.Summary.Tiers))
	return res, nil
}

func tierLabels(tiers map[model.Tier]int) map[string]int {
	out := make(map[string]int, len(tiers))
	for t, n := range tiers {
		out[string(t)] = n
	}
	return out
}
