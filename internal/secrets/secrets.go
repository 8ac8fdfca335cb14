// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Which keys actually matter depends on the run's AppConfig: model_api_key
// is needed for whichever LLM provider is configured, and each enabled
// search source that takes credentials (serpapi_scholar, semantic_scholar)
// needs its own key file. See Required and Missing.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// sourceKeyFiles maps a configured search source name to the secret key
// file it reads its API key from, for sources that take one at all.
var sourceKeyFiles = map[string]string{
	"serpapi_scholar":  "scholar_api_key",
	"semantic_scholar": "semantic_scholar_api_key",
}

// Required returns the secret key names cfg's configured LLM provider and
// enabled search sources actually call for -- model_api_key for whichever
// provider is set in cfg.LLM.Provider, plus one entry per enabled source
// in sourceKeyFiles.
func Required(cfg types.AppConfig) []string {
	keys := []string{"model_api_key"}
	for name, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		if key, ok := sourceKeyFiles[name]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Missing returns the subset of Required(cfg) that cfg has no value for --
// i.e. no secret file, flag, env var, or config entry ever populated the
// corresponding APIKey field. Callers typically warn rather than abort:
// a genuinely missing key surfaces as an authentication error from the
// provider or source itself soon enough.
func Missing(cfg types.AppConfig) []string {
	have := map[string]bool{"model_api_key": cfg.LLM.APIKey != ""}
	for name, src := range cfg.Sources {
		if key, ok := sourceKeyFiles[name]; ok {
			have[key] = have[key] || src.APIKey != ""
		}
	}

	var missing []string
	for _, key := range Required(cfg) {
		if !have[key] {
			missing = append(missing, key)
		}
	}
	return missing
}
