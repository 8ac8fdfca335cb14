// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"net/http"
	"time"

	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// Build constructs the configured, enabled SearchSource backends from
// app configuration. Unknown source names are skipped rather than
// erroring, so an operator typo in one entry does not take down the
// others.
func Build(cfg types.AppConfig) []SearchSource {
	cache, err := NewResolutionCache(cfg.Cache.Path)
	if err != nil {
		cache = &ResolutionCache{}
	}

	httpClient := &http.Client{Timeout: cfg.HTTPConfig.Timeout}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	var built []SearchSource
	for name, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}
		switch name {
		case "serpapi_scholar", "scholar":
			built = append(built, NewScholarSource(sc.APIKey, sc.RateLimit, cfg.HTTPConfig.Timeout, 3, cache))
		case "arxiv":
			built = append(built, NewArxivSource(httpClient, cfg.HTTPConfig.UserAgent))
		case "semantic_scholar":
			built = append(built, NewSemanticScholarSource(httpClient, sc.APIKey, cfg.HTTPConfig.UserAgent))
		}
	}
	return built
}
