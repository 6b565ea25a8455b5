package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "in.c-usage.usage_data", cfg.TableID)
	assert.Equal(t, "Company_Name", cfg.Columns.Entity)
	assert.Equal(t, "Sum_of_Job_Billed_Credits_Used", cfg.Columns.BilledCredits)
	assert.Equal(t, "Error_Jobs_Ratio", cfg.Columns.ErrorRatio)
	assert.Equal(t, ",", cfg.CSV.Delimiter)
	assert.Equal(t, "consolidated", cfg.Report.Variant)
	assert.Equal(t, "./output", cfg.OutputDir)
	assert.Equal(t, "./archive", cfg.ArchiveDir)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, 30, cfg.MaxPollAttempts)
	assert.True(t, cfg.SaveReportEnabled())
	assert.False(t, cfg.SaveSnapshot)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
table_id: in.c-other.usage
columns:
  entity: Customer
  billed_credits: Credits
  error_ratio: Failures
csv_settings:
  delimiter: "|"
report:
  variant: plain
save_report: false
save_snapshot: true
http_timeout_seconds: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "in.c-other.usage", cfg.TableID)
	assert.Equal(t, "Customer", cfg.Columns.Entity)
	assert.Equal(t, "Credits", cfg.Columns.BilledCredits)
	assert.Equal(t, "Failures", cfg.Columns.ErrorRatio)
	assert.Equal(t, "|", cfg.CSV.Delimiter)
	assert.Equal(t, "plain", cfg.Report.Variant)
	assert.False(t, cfg.SaveReportEnabled())
	assert.True(t, cfg.SaveSnapshot)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout())

	// Untouched settings keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, 30, cfg.MaxPollAttempts)
}

func TestLoadPartialColumnsKeepDefaults(t *testing.T) {
	path := writeConfig(t, `
columns:
  entity: Customer
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Customer", cfg.Columns.Entity)
	assert.Equal(t, "Sum_of_Job_Billed_Credits_Used", cfg.Columns.BilledCredits)
}

func TestLoadRejectsUnknownVariant(t *testing.T) {
	path := writeConfig(t, `
report:
  variant: fancy
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report variant")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "table_id: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("KBC_API_TOKEN", "secret-token")
	t.Setenv("KBC_API_URL", "https://connection.keboola.com")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")

	s, err := LoadSecrets()
	require.NoError(t, err)
	assert.Equal(t, "secret-token", s.APIToken)
	assert.Equal(t, "https://connection.keboola.com", s.APIURL)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/X", s.SlackWebhookURL)
}

func TestLoadSecretsMissingToken(t *testing.T) {
	// t.Setenv registers the restore; the variable itself must be absent,
	// not merely empty, for the required check to trip.
	t.Setenv("KBC_API_TOKEN", "placeholder")
	os.Unsetenv("KBC_API_TOKEN")
	t.Setenv("KBC_API_URL", "https://connection.keboola.com")

	_, err := LoadSecrets()
	assert.Error(t, err)
}
