// Package config loads and validates the service configuration at startup.
// Fail-fast: a missing required key or an unparsable value is an error that
// names the variable.
//
// Precedence, highest first: bound CLI flags, environment, the YAML config
// file, .env, defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"jobmate/matching-service/internal/embedding"
	"jobmate/matching-service/internal/matching"
	"jobmate/matching-service/internal/scoring"
	"jobmate/matching-service/internal/secrets"
)

// Keys. Each is read from the environment variable of the same name in upper
// case and from the config file under the same name.
const (
	KeyPort              = "matching_port"
	KeyGRPCPort          = "grpc_port"
	KeyDatabaseURL       = "database_url"
	KeyRedisURL          = "redis_url"
	KeyEmbeddingProvider = "embedding_provider"
	KeyEmbeddingModel    = "embedding_model"
	KeyEmbeddingVersion  = "embedding_model_version"
	KeyEmbeddingDim      = "embedding_dimension"
	KeyEmbeddingMaxChars = "embedding_max_chars"
	KeyEmbeddingTimeout  = "embedding_timeout"
	KeyEmbeddingAPIURL   = "embedding_api_url"
	KeyEmbeddingAPIKey   = "embedding_api_key"
	KeyEmbeddingKeyFile  = "embedding_api_key_file"
	KeyWeightSemantic    = "weight_semantic"
	KeyWeightSkill       = "weight_skill"
	KeyWeightSalary      = "weight_salary"
	KeyWeightLocation    = "weight_location"
	KeyFeedbackBoost     = "feedback_boost"
	KeyDismissFactor     = "feedback_dismiss_factor"
	KeyDismissalDays     = "dismissal_window_days"
	KeySalaryDecay       = "salary_decay_ratio"
	KeyHybridCredit      = "hybrid_credit"
	KeyRecomputeInterval = "recompute_interval"
	KeyRunConcurrency    = "run_concurrency"
	KeyScoreConcurrency  = "score_concurrency"
	KeyVocabularyFile    = "skill_vocabulary_file"
	KeyLogJSON           = "log_json"
	KeyLogDebug          = "log_debug"
	KeyTracingEnabled    = "tracing_enabled"
)

var defaults = map[string]any{
	KeyPort:              "8083",
	KeyGRPCPort:          "9083",
	KeyEmbeddingProvider: embedding.ProviderHash,
	KeyEmbeddingDim:      "384",
	KeyEmbeddingMaxChars: "8000",
	KeyEmbeddingTimeout:  "10s",
	KeyWeightSemantic:    "0.5",
	KeyWeightSkill:       "0.3",
	KeyWeightSalary:      "0.1",
	KeyWeightLocation:    "0.1",
	KeyFeedbackBoost:     "1.1",
	KeyDismissFactor:     "0.1",
	KeyDismissalDays:     "30",
	KeySalaryDecay:       "0.5",
	KeyHybridCredit:      "0.5",
	KeyRecomputeInterval: "@every 6h",
	KeyRunConcurrency:    "4",
	KeyScoreConcurrency:  "8",
	KeyLogJSON:           "false",
	KeyLogDebug:          "false",
	KeyTracingEnabled:    "false",
}

// Config holds all runtime configuration for the matching service.
type Config struct {
	Port        string
	GRPCPort    string
	DatabaseURL string
	RedisURL    string

	Embedding embedding.Config
	Scoring   scoring.Params
	Matching  matching.Options

	FeedbackBoost         float64
	FeedbackDismissFactor float64

	RecomputeInterval string
	VocabularyFile    string

	LogJSON        bool
	LogDebug       bool
	TracingEnabled bool
}

// NewViper returns a viper instance with defaults and environment binding in
// place. Flags may be bound to it with BindPFlag before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	// keys without defaults still need to be known to AutomaticEnv
	for _, k := range []string{KeyDatabaseURL, KeyRedisURL, KeyEmbeddingModel, KeyEmbeddingVersion, KeyEmbeddingAPIURL,
		KeyEmbeddingAPIKey, KeyEmbeddingKeyFile, KeyVocabularyFile} {
		_ = v.BindEnv(k)
	}
	return v
}

// LoadDotEnv loads path into the process environment without overriding
// variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ReadFile reads the YAML config file. An empty path looks for
// matching-service.yaml in the working directory and tolerates its absence;
// an explicit path must exist.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
		return nil
	}
	v.AddConfigPath(".")
	v.SetConfigName("matching-service")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// Load reads v and returns a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	p := parser{v: v}

	cfg := &Config{
		Port:              p.str(KeyPort),
		GRPCPort:          p.str(KeyGRPCPort),
		DatabaseURL:       p.str(KeyDatabaseURL),
		RedisURL:          p.str(KeyRedisURL),
		RecomputeInterval: p.str(KeyRecomputeInterval),
		VocabularyFile:    p.str(KeyVocabularyFile),
		LogJSON:           p.boolean(KeyLogJSON),
		LogDebug:          p.boolean(KeyLogDebug),
		TracingEnabled:    p.boolean(KeyTracingEnabled),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%s is required", envName(KeyDatabaseURL))
	}

	provider := strings.ToLower(p.str(KeyEmbeddingProvider))
	model := p.str(KeyEmbeddingModel)
	if model == "" {
		model = embedding.DefaultModel(provider)
	}
	version := p.str(KeyEmbeddingVersion)
	if version == "" {
		version = model
	}
	cfg.Embedding = embedding.Config{
		Provider: provider,
		Model:    model,
		APIURL:   p.str(KeyEmbeddingAPIURL),
		Options: embedding.Options{
			Version:   version,
			Dimension: p.integer(KeyEmbeddingDim),
			MaxChars:  p.integer(KeyEmbeddingMaxChars),
			Timeout:   p.duration(KeyEmbeddingTimeout),
		},
	}

	cfg.Scoring = scoring.Params{
		Weights: scoring.Weights{
			Semantic: p.float(KeyWeightSemantic),
			Skill:    p.float(KeyWeightSkill),
			Salary:   p.float(KeyWeightSalary),
			Location: p.float(KeyWeightLocation),
		},
		SalaryDecayRatio: p.float(KeySalaryDecay),
		HybridCredit:     p.float(KeyHybridCredit),
	}
	cfg.FeedbackBoost = p.float(KeyFeedbackBoost)
	cfg.FeedbackDismissFactor = p.float(KeyDismissFactor)

	cfg.Matching = matching.DefaultOptions()
	cfg.Matching.DismissalWindow = time.Duration(p.integer(KeyDismissalDays)) * 24 * time.Hour
	cfg.Matching.RunConcurrency = p.integer(KeyRunConcurrency)
	cfg.Matching.ScoreConcurrency = p.integer(KeyScoreConcurrency)

	if p.err != nil {
		return nil, p.err
	}

	key, err := secrets.Load(secrets.Source{
		Name:  "embedding API key",
		Value: p.str(KeyEmbeddingAPIKey),
		File:  p.str(KeyEmbeddingKeyFile),
	})
	switch {
	case err == nil:
		cfg.Embedding.APIKey = key
	case errors.Is(err, secrets.ErrNotConfigured) && cfg.Embedding.Provider != embedding.ProviderGemini:
		// hash needs no key and openai-compatible servers may not
	default:
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}
	switch c.Embedding.Provider {
	case embedding.ProviderHash, embedding.ProviderGemini:
	case embedding.ProviderOpenAI:
		if c.Embedding.APIURL == "" {
			return fmt.Errorf("%s is required for provider %q", envName(KeyEmbeddingAPIURL), c.Embedding.Provider)
		}
	default:
		return fmt.Errorf("%s: unknown provider %q", envName(KeyEmbeddingProvider), c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("%s must be positive", envName(KeyEmbeddingDim))
	}
	if c.FeedbackBoost < 1 {
		return fmt.Errorf("%s must be at least 1, got %v", envName(KeyFeedbackBoost), c.FeedbackBoost)
	}
	if c.FeedbackDismissFactor < 0 || c.FeedbackDismissFactor > 1 {
		return fmt.Errorf("%s must be in [0,1], got %v", envName(KeyDismissFactor), c.FeedbackDismissFactor)
	}
	if c.Matching.DismissalWindow < 0 {
		return fmt.Errorf("%s must not be negative", envName(KeyDismissalDays))
	}
	if c.Matching.RunConcurrency < 1 || c.Matching.ScoreConcurrency < 1 {
		return fmt.Errorf("%s and %s must be at least 1", envName(KeyRunConcurrency), envName(KeyScoreConcurrency))
	}
	return nil
}

func envName(key string) string { return strings.ToUpper(key) }

// parser keeps the first conversion error so Load can read every key in one
// pass and report a single failure.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: invalid value %q: %w", envName(key), raw, err)
	}
}

func (p *parser) float(key string) float64 {
	raw := p.str(key)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
	}
	return f
}

func (p *parser) integer(key string) int {
	raw := p.str(key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return n
}

func (p *parser) duration(key string) time.Duration {
	raw := p.str(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return d
}

func (p *parser) boolean(key string) bool {
	raw := p.str(key)
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return b
}
