package engine

import (
	"time"

	"ledgerq/internal/config"
	"ledgerq/internal/fallback"
	"ledgerq/internal/intent"
	"ledgerq/internal/mutation"
)

// Config is the caller-supplied behaviour of one engine.
type Config struct {
	// Threshold is the minimum classifier margin before a query is treated
	// as ambiguous.
	Threshold       float64
	FallbackTimeout time.Duration
	MaxTokens       int
	CommitPolicy    mutation.Policy
	// SummaryCacheSize bounds the cached per-scope summaries.
	SummaryCacheSize int
	// CacheTTL drops cached views nobody asked for in a while; zero keeps
	// them until evicted.
	CacheTTL time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Threshold:        intent.DefaultThreshold,
		FallbackTimeout:  fallback.DefaultTimeout,
		MaxTokens:        fallback.DefaultMaxTokens,
		CommitPolicy:     mutation.Partial,
		SummaryCacheSize: 32,
		CacheTTL:         15 * time.Minute,
	}
}

// ConfigFrom maps application configuration onto engine settings.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	c.Threshold = cfg.ConfidenceThreshold
	c.FallbackTimeout = cfg.FallbackTimeout
	c.MaxTokens = cfg.FallbackMaxTokens
	c.CommitPolicy = mutation.ParsePolicy(cfg.CommitPolicy)
	c.CacheTTL = cfg.CacheTTL
	return c
}
