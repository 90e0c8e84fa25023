// Package config defines run configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer sources.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"time"
)

// Config contains everything a single pipeline run needs.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// GitHubToken authenticates against the source-event provider. Required.
	GitHubToken string `koanf:"github_token"`

	// GitHubOrg is the organization whose repositories are scanned. Required.
	GitHubOrg string `koanf:"github_org"`

	// SheetID identifies the ticketing spreadsheet. Optional; when empty the
	// run degrades to source-only metrics.
	SheetID string `koanf:"sheet_id"`

	// SheetName selects the worksheet inside the spreadsheet.
	SheetName string `koanf:"sheet_name"`

	// CredentialsPath points at the service-account JSON for the sheet API.
	CredentialsPath string `koanf:"credentials_path"`

	// UserMappingFile is an optional JSON map of ticket names to logins.
	UserMappingFile string `koanf:"user_mapping_file"`

	// DaysBack sizes the window when StartDate/EndDate are not given.
	DaysBack int `koanf:"days_back"`

	// StartDate and EndDate bound the window explicitly (YYYY-MM-DD).
	StartDate string `koanf:"start_date"`
	EndDate   string `koanf:"end_date"`

	// OutputDir receives the workbook and report files.
	OutputDir string `koanf:"output_dir"`

	// OutputFilename overrides the generated workbook name.
	OutputFilename string `koanf:"output_filename"`

	// MaxWorkers bounds the per-repository fetch fan-out.
	MaxWorkers int `koanf:"max_workers"`

	// AnalysisWorkers bounds the per-identity analysis pool.
	AnalysisWorkers int `koanf:"analysis_workers"`

	// ReportWorkers bounds concurrent PDF generation.
	ReportWorkers int `koanf:"report_workers"`

	// RequestTimeout applies to individual provider requests.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// TaskTimeout applies to each per-identity pool task.
	TaskTimeout time.Duration `koanf:"task_timeout"`

	// RateLimitBuffer is the minimum remaining API budget required to start.
	RateLimitBuffer int `koanf:"rate_limit_buffer"`

	// SampleCommits and SampleReviews cap the qualitative samples per identity.
	SampleCommits int `koanf:"sample_commits"`
	SampleReviews int `koanf:"sample_reviews"`

	// AnalyzerEnabled toggles the qualitative analyzer.
	AnalyzerEnabled bool `koanf:"analyzer_enabled"`

	// OpenAIKey and OpenAIModel configure the analyzer provider.
	OpenAIKey   string `koanf:"openai_key"`
	OpenAIModel string `koanf:"openai_model"`

	// MetricsAddr, when set, serves /metrics during the run (e.g. ":9090").
	MetricsAddr string `koanf:"metrics_addr"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		SheetName:       "Sheet1",
		CredentialsPath: "./credentials/service_account.json",
		UserMappingFile: "./user_mapping.json",
		DaysBack:        30,
		OutputDir:       "./output",
		MaxWorkers:      5,
		AnalysisWorkers: 3,
		ReportWorkers:   4,
		RequestTimeout:  30 * time.Second,
		TaskTimeout:     60 * time.Second,
		RateLimitBuffer: 100,
		SampleCommits:   10,
		SampleReviews:   5,
		AnalyzerEnabled: false,
		OpenAIModel:     "gpt-4o-mini",
	}
}
