// =============================================================================
// Usage Insights Reporter - Configuration Module
// =============================================================================
//
// This module loads and manages configuration. Two sources exist:
//
//   1. Main Config (config.yaml): column names, report layout, directories,
//      polling and timeout settings. Everything here has a sensible default
//      matching the standard usage dataset, so a missing config file is not
//      an error.
//   2. Environment secrets (.env or the process environment): the Storage
//      API token and URL and the Slack webhook URL. These never live in the
//      YAML file.
//
// ARCHITECTURE:
//   The configuration system is designed to be:
//   - Declarative: plain structs with yaml/envconfig tags
//   - Defaulted:  applyDefaults fills anything the file leaves out
//   - Validated:  validate rejects configurations the pipeline cannot run with
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the application configuration loaded from the YAML file.
type Config struct {
	// TableID is the Keboola table to analyze.
	// Default: "in.c-usage.usage_data"
	TableID string `yaml:"table_id"`

	// Columns names the usage-table columns the pipeline works with.
	Columns ColumnSettings `yaml:"columns"`

	// CSV contains settings for parsing the exported payload.
	CSV CSVSettings `yaml:"csv_settings"`

	// Report contains report layout settings.
	Report ReportSettings `yaml:"report"`

	// OutputDir is the directory where the rendered report and the raw
	// payload snapshot are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// ArchiveDir is the directory where output files are archived.
	// Default: "./archive"
	ArchiveDir string `yaml:"archive_dir"`

	// SaveReport writes the rendered report to the output directory.
	// Default: true
	SaveReport *bool `yaml:"save_report"`

	// SaveSnapshot writes the fetched raw payload to the output directory.
	// Default: false
	SaveSnapshot bool `yaml:"save_snapshot"`

	// HTTPTimeoutSeconds bounds each Storage API and webhook request.
	// Default: 30
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`

	// PollIntervalSeconds is the delay between export job status checks.
	// Default: 2
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`

	// MaxPollAttempts bounds export job polling.
	// Default: 30
	MaxPollAttempts int `yaml:"max_poll_attempts"`
}

// ColumnSettings names the three columns of interest. Column names are
// configuration, not hardcoded literals, to allow schema variation.
type ColumnSettings struct {
	// Entity is the grouping column (the company identifier).
	// Default: "Company_Name"
	Entity string `yaml:"entity"`

	// BilledCredits is the billed-credits amount column.
	// Default: "Sum_of_Job_Billed_Credits_Used"
	BilledCredits string `yaml:"billed_credits"`

	// ErrorRatio is the error-ratio column.
	// Default: "Error_Jobs_Ratio"
	ErrorRatio string `yaml:"error_ratio"`
}

// CSVSettings contains settings for parsing the exported payload.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Common values: "," (comma), "|" (pipe), "\t" (tab)
	// Default: ","
	Delimiter string `yaml:"delimiter"`
}

// ReportSettings contains report layout settings.
type ReportSettings struct {
	// Variant selects the layout: "consolidated" (one block per company)
	// or "plain" (one block per metric).
	// Default: "consolidated"
	Variant string `yaml:"variant"`
}

// HTTPTimeout returns the configured request timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// PollInterval returns the configured poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// SaveReportEnabled reports whether the rendered report should be written
// to the output directory (on unless explicitly disabled).
func (c *Config) SaveReportEnabled() bool {
	return c.SaveReport == nil || *c.SaveReport
}

// =============================================================================
// SECRETS (ENVIRONMENT)
// =============================================================================

// Secrets holds the credentials read from the environment. A .env file in
// the working directory is loaded first if present.
type Secrets struct {
	// APIToken is the Keboola Storage API token.
	APIToken string `envconfig:"KBC_API_TOKEN" required:"true"`

	// APIURL is the Keboola Storage API endpoint.
	APIURL string `envconfig:"KBC_API_URL" required:"true"`

	// SlackWebhookURL is the Slack incoming-webhook URL the report is
	// posted to. Optional: commands that do not notify leave it empty.
	SlackWebhookURL string `envconfig:"SLACK_WEBHOOK_URL"`
}

// LoadSecrets loads credentials from .env (if present) and the process
// environment.
func LoadSecrets() (*Secrets, error) {
	_ = godotenv.Load()

	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("failed to load environment configuration: %w", err)
	}
	return &s, nil
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// Load loads the main configuration from a YAML file. A missing file yields
// the default configuration; every other read or parse failure is an error.
func Load(configPath string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		// Defaults cover the standard usage dataset.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(config *Config) {
	if config.TableID == "" {
		config.TableID = "in.c-usage.usage_data"
	}
	if config.Columns.Entity == "" {
		config.Columns.Entity = "Company_Name"
	}
	if config.Columns.BilledCredits == "" {
		config.Columns.BilledCredits = "Sum_of_Job_Billed_Credits_Used"
	}
	if config.Columns.ErrorRatio == "" {
		config.Columns.ErrorRatio = "Error_Jobs_Ratio"
	}
	if config.CSV.Delimiter == "" {
		config.CSV.Delimiter = ","
	}
	if config.Report.Variant == "" {
		config.Report.Variant = "consolidated"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.ArchiveDir == "" {
		config.ArchiveDir = "./archive"
	}
	if config.HTTPTimeoutSeconds == 0 {
		config.HTTPTimeoutSeconds = 30
	}
	if config.PollIntervalSeconds == 0 {
		config.PollIntervalSeconds = 2
	}
	if config.MaxPollAttempts == 0 {
		config.MaxPollAttempts = 30
	}
}

// validate rejects configurations the pipeline cannot run with.
func validate(config *Config) error {
	if config.Report.Variant != "consolidated" && config.Report.Variant != "plain" {
		return fmt.Errorf("report variant must be %q or %q, got %q", "consolidated", "plain", config.Report.Variant)
	}

	columns := map[string]string{
		"columns.entity":         config.Columns.Entity,
		"columns.billed_credits": config.Columns.BilledCredits,
		"columns.error_ratio":    config.Columns.ErrorRatio,
	}
	for name, value := range columns {
		if value == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	return nil
}
