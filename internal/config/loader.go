package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env in the working directory, if present
//  3. file (YAML) if TEAMLENS_CONFIG is set
//  4. env (prefix TEAMLENS_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	// .env is how the original deployments carry credentials; absence is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: .env: %v", ErrLoadConfig, err)
	}

	k := koanf.New(".")

	if path := os.Getenv("TEAMLENS_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// Environment variables: TEAMLENS_GITHUB_TOKEN, TEAMLENS_DAYS_BACK, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("TEAMLENS_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "teamlens_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required credentials and value sanity. Configuration errors
// are fatal before any fetch begins.
func (c *Config) Validate() error {
	if c.GitHubToken == "" {
		return fmt.Errorf("%w: github_token is required", ErrInvalidConfig)
	}
	if c.GitHubOrg == "" {
		return fmt.Errorf("%w: github_org is required", ErrInvalidConfig)
	}
	if c.DaysBack <= 0 {
		return fmt.Errorf("%w: days_back must be positive, got %d", ErrInvalidConfig, c.DaysBack)
	}
	if c.MaxWorkers <= 0 || c.AnalysisWorkers <= 0 || c.ReportWorkers <= 0 {
		return fmt.Errorf("%w: worker counts must be positive", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be positive", ErrInvalidConfig)
	}
	if c.StartDate != "" || c.EndDate != "" {
		start, err := time.Parse("2006-01-02", c.StartDate)
		if err != nil {
			return fmt.Errorf("%w: start_date %q (use YYYY-MM-DD)", ErrInvalidConfig, c.StartDate)
		}
		end, err := time.Parse("2006-01-02", c.EndDate)
		if err != nil {
			return fmt.Errorf("%w: end_date %q (use YYYY-MM-DD)", ErrInvalidConfig, c.EndDate)
		}
		if !start.Before(end) {
			return fmt.Errorf("%w: start_date %s must be before end_date %s", ErrInvalidConfig, c.StartDate, c.EndDate)
		}
	}
	if c.AnalyzerEnabled && c.OpenAIKey == "" {
		return fmt.Errorf("%w: openai_key is required when the analyzer is enabled", ErrInvalidConfig)
	}
	return nil
}

// Window resolves the run's time window. Explicit dates win over DaysBack.
func (c *Config) Window(now time.Time) (start, end time.Time, err error) {
	if c.StartDate != "" && c.EndDate != "" {
		start, err = time.Parse("2006-01-02", c.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date: %v", ErrInvalidConfig, err)
		}
		end, err = time.Parse("2006-01-02", c.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date: %v", ErrInvalidConfig, err)
		}
		return start.UTC(), end.UTC(), nil
	}
	end = now.UTC()
	return end.AddDate(0, 0, -c.DaysBack), end, nil
}
