// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ModelProvider identifies a model-client backend.
type ModelProvider string

const (
	ProviderOpenAI    ModelProvider = "openai"
	ProviderAnthropic ModelProvider = "claude"
	ProviderGemini    ModelProvider = "gemini"
)

// LLMConfig holds settings for the Model Client Abstraction.
type LLMConfig struct {
	Provider    ModelProvider `json:"provider" yaml:"provider"`
	Model       string        `json:"model" yaml:"model"`
	APIKey      string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
}

// SearchSourceConfig holds settings for one configured search source.
type SearchSourceConfig struct {
	Name      string  `json:"name" yaml:"name"`
	APIKey    string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Enabled   bool    `json:"enabled" yaml:"enabled"`
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
}

// CacheConfig holds settings for the resolution cache.
type CacheConfig struct {
	// Path is the sqlite file path. Empty disables the cache.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// AppConfig is the root configuration: external search credentials, model
// routing, per-stage knobs, and session timing.
type AppConfig struct {
	HTTPConfig `yaml:",inline"`

	LLM     LLMConfig                     `json:"llm" yaml:"llm"`
	Sources map[string]SearchSourceConfig `json:"sources" yaml:"sources"`
	Cache   CacheConfig                   `json:"cache" yaml:"cache"`

	Domain            string `json:"domain" yaml:"domain"`
	DefaultMaxResults int    `json:"default_max_results" yaml:"default_max_results"`
	SearchMaxCalls    int    `json:"search_max_calls" yaml:"search_max_calls"`

	RelevanceBatchSize      int `json:"relevance_batch_size" yaml:"relevance_batch_size"`
	RelevanceMaxConcurrency int `json:"relevance_max_concurrency" yaml:"relevance_max_concurrency"`

	DedupEnableLLMPass    bool `json:"dedup_enable_llm_pass" yaml:"dedup_enable_llm_pass"`
	DedupLLMMaxCandidates int  `json:"dedup_llm_max_candidates" yaml:"dedup_llm_max_candidates"`

	MaxIterations            int     `json:"max_iterations" yaml:"max_iterations"`
	EnableStrategyCheckpoint bool    `json:"enable_strategy_checkpoint" yaml:"enable_strategy_checkpoint"`
	SessionDecideTimeoutS    float64 `json:"session_decide_timeout_s" yaml:"session_decide_timeout_s"`
	SessionPollIntervalS     float64 `json:"session_poll_interval_s" yaml:"session_poll_interval_s"`
}

// Defaults returns an AppConfig populated with the defaults named across
// the component design (batch size 10, max concurrency 3, iteration
// ceiling 5, dedup candidate cap 60, decide timeout 15s, poll interval
// 50ms).
func Defaults() AppConfig {
	return AppConfig{
		HTTPConfig: HTTPConfig{
			Timeout:   20 * time.Second,
			UserAgent: "paper-search/0.1",
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0,
			MaxTokens:   4096,
		},
		Sources:                  map[string]SearchSourceConfig{},
		Domain:                   "general",
		DefaultMaxResults:        100,
		RelevanceBatchSize:       10,
		RelevanceMaxConcurrency:  3,
		DedupEnableLLMPass:       true,
		DedupLLMMaxCandidates:    60,
		MaxIterations:            5,
		EnableStrategyCheckpoint: true,
		SessionDecideTimeoutS:    15.0,
		SessionPollIntervalS:     0.05,
	}
}
