package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/bioleads/internal/scorer"
)

// Config holds the full application configuration.
type Config struct {
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Linkage LinkageConfig `yaml:"linkage" mapstructure:"linkage"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
}

// LinkageConfig configures duplicate detection.
type LinkageConfig struct {
	NameThreshold        int  `yaml:"name_threshold" mapstructure:"name_threshold"`
	InstitutionThreshold int  `yaml:"institution_threshold" mapstructure:"institution_threshold"`
	Fuzzy                bool `yaml:"fuzzy" mapstructure:"fuzzy"`
	DedupeGrants         bool `yaml:"dedupe_grants" mapstructure:"dedupe_grants"`
}

// ScoringConfig holds the weight profile. When Profile names a YAML file it
// is overlaid on the defaults instead of the inline weights.
type ScoringConfig struct {
	Profile               string `yaml:"profile" mapstructure:"profile"`
	scorer.ScoringWeights `yaml:",inline" mapstructure:",squash"`
}

// Weights resolves the effective weight profile.
func (s ScoringConfig) Weights() (scorer.ScoringWeights, error) {
	if s.Profile == "" {
		return s.ScoringWeights, nil
	}
	w, err := scorer.LoadWeightsFile(s.Profile)
	if err != nil {
		return scorer.ScoringWeights{}, eris.Wrap(err, "config: load scoring profile")
	}
	return w, nil
}

// SourcesConfig configures the public data source adapters.
type SourcesConfig struct {
	Enabled     []string    `yaml:"enabled" mapstructure:"enabled"`
	Queries     []string    `yaml:"queries" mapstructure:"queries"`
	MaxResults  int         `yaml:"max_results" mapstructure:"max_results"`
	Concurrency int         `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Mailto      string      `yaml:"mailto" mapstructure:"mailto"`
	UserAgent   string      `yaml:"user_agent" mapstructure:"user_agent"`
	Retry       RetryConfig `yaml:"retry" mapstructure:"retry"`

	PubMed         EndpointConfig `yaml:"pubmed" mapstructure:"pubmed"`
	OpenAlex       EndpointConfig `yaml:"openalex" mapstructure:"openalex"`
	NIH            EndpointConfig `yaml:"nih" mapstructure:"nih"`
	ClinicalTrials EndpointConfig `yaml:"clinicaltrials" mapstructure:"clinicaltrials"`
}

// RetryConfig configures retries and the per-source circuit breaker.
type RetryConfig struct {
	MaxAttempts         int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs    int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// EndpointConfig configures one upstream API.
type EndpointConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	Burst     int     `yaml:"burst" mapstructure:"burst"`
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
}

// EnrichConfig configures company enrichment.
type EnrichConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	OpenAlexLookup bool `yaml:"openalex_lookup" mapstructure:"openalex_lookup"`
	Concurrency    int  `yaml:"concurrency" mapstructure:"concurrency"`
}

// ExportConfig configures result export.
type ExportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the results API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	Input          string   `yaml:"input" mapstructure:"input"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Known source names.
const (
	SourcePubMed         = "pubmed"
	SourceOpenAlex       = "openalex"
	SourceNIH            = "nih"
	SourceClinicalTrials = "clinicaltrials"
)

var knownSources = map[string]bool{
	SourcePubMed:         true,
	SourceOpenAlex:       true,
	SourceNIH:            true,
	SourceClinicalTrials: true,
}

var exportFormats = map[string]bool{"json": true, "csv": true, "xlsx": true}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("bioleads")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BIOLEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Keyword tables have no scalar keys to default; fill them when absent.
	if len(cfg.Scoring.RolePriorities) == 0 {
		cfg.Scoring.RolePriorities = scorer.DefaultRolePriorities()
	}
	if len(cfg.Scoring.TopicRelevance) == 0 {
		cfg.Scoring.TopicRelevance = scorer.DefaultTopicRelevance()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("linkage.name_threshold", 85)
	v.SetDefault("linkage.institution_threshold", 70)
	v.SetDefault("linkage.fuzzy", true)
	v.SetDefault("linkage.dedupe_grants", false)

	w := scorer.DefaultWeights()
	v.SetDefault("scoring.publication_weight", w.PublicationWeight)
	v.SetDefault("scoring.grant_weight", w.GrantWeight)
	v.SetDefault("scoring.clinical_trial_weight", w.ClinicalTrialWeight)
	v.SetDefault("scoring.citation_weight", w.CitationWeight)
	v.SetDefault("scoring.conference_weight", w.ConferenceWeight)
	v.SetDefault("scoring.recent_activity_weight", w.RecentActivityWeight)
	v.SetDefault("scoring.role_fit_weight", w.RoleFitWeight)
	v.SetDefault("scoring.institution_fit_weight", w.InstitutionFitWeight)
	v.SetDefault("scoring.research_focus_weight", w.ResearchFocusWeight)
	v.SetDefault("scoring.hot_threshold", w.HotThreshold)
	v.SetDefault("scoring.warm_threshold", w.WarmThreshold)
	v.SetDefault("scoring.cold_threshold", w.ColdThreshold)
	v.SetDefault("scoring.publication_bands.excellent", w.PublicationBands.Excellent)
	v.SetDefault("scoring.publication_bands.good", w.PublicationBands.Good)
	v.SetDefault("scoring.publication_bands.moderate", w.PublicationBands.Moderate)
	v.SetDefault("scoring.publication_bands.minimal", w.PublicationBands.Minimal)
	v.SetDefault("scoring.grant_bands.major", w.GrantBands.Major)
	v.SetDefault("scoring.grant_bands.significant", w.GrantBands.Significant)
	v.SetDefault("scoring.grant_bands.moderate", w.GrantBands.Moderate)
	v.SetDefault("scoring.grant_bands.seed", w.GrantBands.Seed)

	v.SetDefault("sources.enabled", []string{SourcePubMed, SourceOpenAlex, SourceNIH, SourceClinicalTrials})
	v.SetDefault("sources.queries", []string{"3D cell culture", "organoid", "spheroid", "organ-on-a-chip", "drug-induced liver injury"})
	v.SetDefault("sources.max_results", 100)
	v.SetDefault("sources.concurrency", 4)
	v.SetDefault("sources.timeout_secs", 30)
	v.SetDefault("sources.user_agent", "bioleads/1.0")
	v.SetDefault("sources.retry.max_attempts", 3)
	v.SetDefault("sources.retry.initial_backoff_ms", 500)
	v.SetDefault("sources.retry.breaker_threshold", 5)
	v.SetDefault("sources.retry.breaker_cooldown_secs", 30)
	v.SetDefault("sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("sources.pubmed.rate_limit", 3.0)
	v.SetDefault("sources.pubmed.burst", 1)
	v.SetDefault("sources.pubmed.api_key", "")
	v.SetDefault("sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("sources.openalex.rate_limit", 10.0)
	v.SetDefault("sources.openalex.burst", 1)
	v.SetDefault("sources.nih.base_url", "https://api.reporter.nih.gov")
	v.SetDefault("sources.nih.rate_limit", 1.0)
	v.SetDefault("sources.nih.burst", 1)
	v.SetDefault("sources.clinicaltrials.base_url", "https://clinicaltrials.gov")
	v.SetDefault("sources.clinicaltrials.rate_limit", 2.0)
	v.SetDefault("sources.clinicaltrials.burst", 1)

	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.openalex_lookup", false)
	v.SetDefault("enrich.concurrency", 4)

	v.SetDefault("export.format", "csv")
	v.SetDefault("export.output", "leads.csv")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
}

// Validate checks the configuration for the given command mode. Each mode
// only validates the sections it uses.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run":
		errs = append(errs, c.validateSources()...)
		errs = append(errs, c.validateLinkage()...)
		errs = append(errs, c.validateEnrich()...)
		errs = append(errs, c.validateExport()...)
	case "fetch":
		errs = append(errs, c.validateSources()...)
	case "dedupe":
		errs = append(errs, c.validateLinkage()...)
	case "score", "weights":
	case "export":
		errs = append(errs, c.validateExport()...)
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		errs = append(errs, c.validateLinkage()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateSources() []string {
	var errs []string
	if len(c.Sources.Enabled) == 0 {
		errs = append(errs, "sources.enabled must name at least one source")
	}
	for _, name := range c.Sources.Enabled {
		if !knownSources[name] {
			errs = append(errs, fmt.Sprintf("sources.enabled: unknown source %q", name))
		}
	}
	if len(c.Sources.Queries) == 0 {
		errs = append(errs, "sources.queries is required")
	}
	if c.Sources.MaxResults <= 0 {
		errs = append(errs, "sources.max_results must be > 0")
	}
	if c.Sources.Concurrency < 1 || c.Sources.Concurrency > 16 {
		errs = append(errs, "sources.concurrency must be between 1 and 16")
	}
	if c.Sources.TimeoutSecs <= 0 {
		errs = append(errs, "sources.timeout_secs must be > 0")
	}
	return errs
}

func (c *Config) validateLinkage() []string {
	var errs []string
	if c.Linkage.NameThreshold < 0 || c.Linkage.NameThreshold > 100 {
		errs = append(errs, "linkage.name_threshold must be between 0 and 100")
	}
	if c.Linkage.InstitutionThreshold < 0 || c.Linkage.InstitutionThreshold > 100 {
		errs = append(errs, "linkage.institution_threshold must be between 0 and 100")
	}
	return errs
}

func (c *Config) validateEnrich() []string {
	if c.Enrich.Enabled && c.Enrich.Concurrency < 1 {
		return []string{"enrich.concurrency must be >= 1"}
	}
	return nil
}

func (c *Config) validateExport() []string {
	if c.Export.Format != "" && !exportFormats[c.Export.Format] {
		return []string{fmt.Sprintf("export.format must be one of json, csv, xlsx, got %q", c.Export.Format)}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
