// Package server exposes a scored lead set over a small JSON API.
package server

import (
	"cmp"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/bioleads/internal/export"
	"github.com/sells-group/bioleads/internal/linkage"
	"github.com/sells-group/bioleads/internal/metrics"
	"github.com/sells-group/bioleads/internal/model"
	"github.com/sells-group/bioleads/internal/pipeline"
	"github.com/sells-group/bioleads/internal/scorer"
)

const maxBodyBytes = 10 << 20

// Server serves a fixed result set. POST endpoints score or link the posted
// leads without touching it.
type Server struct {
	leads   []*model.LeadRecord
	byID    map[string]*model.LeadRecord
	summary pipeline.Summary
	dedupe  *linkage.Deduplicator
	engine  *scorer.Engine
	origins []string
	logger  *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origins. Defaults to "*".
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithLogger overrides the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server over leads, which are served best first.
func New(leads []*model.LeadRecord, dedupe *linkage.Deduplicator, engine *scorer.Engine, opts ...Option) *Server {
	sorted := slices.Clone(leads)
	slices.SortStableFunc(sorted, func(a, b *model.LeadRecord) int {
		return cmp.Compare(scoreOf(b), scoreOf(a))
	})

	s := &Server{
		leads:   sorted,
		byID:    make(map[string]*model.LeadRecord, len(sorted)),
		summary: pipeline.Summarize(sorted, sorted, sorted),
		dedupe:  dedupe,
		engine:  engine,
		origins: []string{"*"},
		logger:  zap.L(),
	}
	for _, l := range sorted {
		if l.ID != "" {
			s.byID[l.ID] = l
		}
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func scoreOf(l *model.LeadRecord) float64 {
	if l.Score == nil {
		return 0
	}
	return *l.Score
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware())

	r.Get("/health", s.health)
	r.Get("/summary", s.getSummary)
	r.Get("/leads", s.listLeads)
	r.Get("/leads/{id}", s.getLead)
	r.Post("/score", s.score)
	r.Post("/dedupe", s.dedupeLeads)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "leads": len(s.leads)})
}

func (s *Server) getSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.summary)
}

type leadsResponse struct {
	Leads []*model.LeadRecord `json:"leads"`
	Total int                 `json:"total"`
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	out := s.leads
	if t := q.Get("tier"); t != "" {
		tier := model.Tier(t)
		if !slices.Contains(model.Tiers, tier) {
			writeError(w, http.StatusBadRequest, "invalid tier: "+t)
			return
		}
		out = make([]*model.LeadRecord, 0)
		for _, l := range s.leads {
			if l.Tier == tier {
				out = append(out, l)
			}
		}
	}
	total := len(out)

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit < len(out) {
			out = out[:limit]
		}
	}
	if out == nil {
		out = []*model.LeadRecord{}
	}

	writeJSON(w, http.StatusOK, leadsResponse{Leads: out, Total: total})
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, ok := s.byID[id]
	if !ok {
		writeError(w, http.StatusNotFound, "lead not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type scoreResponse struct {
	Leads   []*model.LeadRecord `json:"leads"`
	Summary scorer.TierSummary  `json:"summary"`
}

func (s *Server) score(w http.ResponseWriter, r *http.Request) {
	leads, ok := s.readLeads(w, r)
	if !ok {
		return
	}
	scored := s.engine.ScoreBatch(leads)
	writeJSON(w, http.StatusOK, scoreResponse{Leads: scored, Summary: scorer.Summarize(scored)})
}

type dedupeResponse struct {
	Leads             []*model.LeadRecord `json:"leads"`
	Input             int                 `json:"input"`
	Output            int                 `json:"output"`
	DuplicatesRemoved int                 `json:"duplicates_removed"`
}

func (s *Server) dedupeLeads(w http.ResponseWriter, r *http.Request) {
	leads, ok := s.readLeads(w, r)
	if !ok {
		return
	}
	out := s.dedupe.Deduplicate(leads)
	writeJSON(w, http.StatusOK, dedupeResponse{
		Leads:             out,
		Input:             len(leads),
		Output:            len(out),
		DuplicatesRemoved: len(leads) - len(out),
	})
}

func (s *Server) readLeads(w http.ResponseWriter, r *http.Request) ([]*model.LeadRecord, bool) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	leads, err := export.ReadLeads(r.Context(), body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}
	return leads, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("server: panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one log line per request.
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("server: request",
				zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
