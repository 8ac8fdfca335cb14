// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the dev entry point for the paper search engine: a
// single-shot CLI that runs one query end to end and prints the
// resulting collection as Markdown (§6).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/paper-search/internal/export"
	"github.com/mesh-intelligence/paper-search/internal/secrets"
	"github.com/mesh-intelligence/paper-search/internal/workflow"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when it is non-empty; otherwise it returns
// the secret loaded for key, or "" when there is none.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the paper-search CLI. Running it with
// query words performs one full, non-interactive search run.
var rootCmd = &cobra.Command{
	Use:   "paper-search <query-words...>",
	Short: "Turn a research question into a ranked, deduplicated paper collection",
	Long: `paper-search runs the full intent-parse -> query-build -> search ->
deduplicate -> score -> organize pipeline for one query, with every
checkpoint auto-approved, and prints the resulting collection as Markdown.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			_ = cmd.Usage()
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		if missing := secrets.Missing(cfg); len(missing) > 0 {
			fmt.Fprintf(os.Stderr, "warning: no value found for %v (provider %q); place a file under .secrets/ or set it via flag/env/config\n",
				missing, cfg.LLM.Provider)
		}
		wf, err := workflow.FromConfig(cmd.Context(), cfg,
			workflow.WithStrategyCheckpoint(false),
			workflow.WithMaxIterations(1),
		)
		if err != nil {
			return err
		}

		collection, err := wf.Run(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Println(export.Markdown(collection))
		return nil
	},
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-search.yaml or ~/.config/paper-search/paper-search.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-search")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-search"))
		}
	}

	viper.SetEnvPrefix("PAPER_SEARCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildConfig maps viper-bound settings and loaded secrets onto an
// AppConfig, layered over Defaults().
func buildConfig() types.AppConfig {
	cfg := types.Defaults()

	if v := viper.GetString("model.provider"); v != "" {
		cfg.LLM.Provider = types.ModelProvider(v)
	}
	cfg.LLM.Model = viper.GetString("model.name")
	cfg.LLM.BaseURL = viper.GetString("model.base_url")
	cfg.LLM.APIKey = secretDefault("model_api_key", viper.GetString("model.api_key"))
	if viper.IsSet("model.temperature") {
		cfg.LLM.Temperature = viper.GetFloat64("model.temperature")
	}
	if viper.IsSet("model.max_tokens") {
		cfg.LLM.MaxTokens = viper.GetInt("model.max_tokens")
	}

	if viper.IsSet("default_max_results") {
		cfg.DefaultMaxResults = viper.GetInt("default_max_results")
	}
	if viper.IsSet("search.max_calls") {
		cfg.SearchMaxCalls = viper.GetInt("search.max_calls")
	}
	if v := viper.GetString("domain"); v != "" {
		cfg.Domain = v
	}

	if viper.IsSet("scorer.batch_size") {
		cfg.RelevanceBatchSize = viper.GetInt("scorer.batch_size")
	}
	if viper.IsSet("scorer.max_concurrency") {
		cfg.RelevanceMaxConcurrency = viper.GetInt("scorer.max_concurrency")
	}
	if viper.IsSet("dedup.enable_llm_pass") {
		cfg.DedupEnableLLMPass = viper.GetBool("dedup.enable_llm_pass")
	}
	if viper.IsSet("dedup.llm_max_candidates") {
		cfg.DedupLLMMaxCandidates = viper.GetInt("dedup.llm_max_candidates")
	}
	if viper.IsSet("session.decide_timeout_s") {
		cfg.SessionDecideTimeoutS = viper.GetFloat64("session.decide_timeout_s")
	}
	if viper.IsSet("session.poll_interval_s") {
		cfg.SessionPollIntervalS = viper.GetFloat64("session.poll_interval_s")
	}

	cfg.Sources = map[string]types.SearchSourceConfig{
		"serpapi_scholar": {
			Name:      "serpapi_scholar",
			Enabled:   true,
			APIKey:    secretDefault("scholar_api_key", viper.GetString("sources.serpapi_scholar.api_key")),
			RateLimit: viper.GetFloat64("sources.serpapi_scholar.rate_limit"),
		},
		"arxiv": {
			Name:    "arxiv",
			Enabled: viper.GetBool("sources.arxiv.enabled"),
		},
		"semantic_scholar": {
			Name:    "semantic_scholar",
			Enabled: viper.GetBool("sources.semantic_scholar.enabled"),
			APIKey:  secretDefault("semantic_scholar_api_key", viper.GetString("sources.semantic_scholar.api_key")),
		},
	}

	return cfg
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
