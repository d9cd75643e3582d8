package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admart/pkg/errors"
	"admart/pkg/models"
)

func setRunEnv(t *testing.T) {
	t.Helper()
	t.Setenv("COMPANY", "acme")
	t.Setenv("PROJECT", "acme-analytics")
	t.Setenv("PLATFORM", "tiktok")
	t.Setenv("DEPARTMENT", "ecom")
	t.Setenv("ACCOUNT", "main")
	t.Setenv("LAYER", "campaign")
	t.Setenv("MODE", "last7days")
}

func TestFromEnv(t *testing.T) {
	setRunEnv(t)

	p, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "acme", p.Company)
	assert.Equal(t, LayerCampaign, p.Layer)
	assert.Equal(t, ModeLast7Days, p.Mode)
}

func TestFromEnvMissingVariables(t *testing.T) {
	setRunEnv(t)
	t.Setenv("DEPARTMENT", "")
	t.Setenv("MODE", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigNotFound))
	assert.Contains(t, err.Error(), "missing required environment variables")
}

func TestFromEnvInvalidLayer(t *testing.T) {
	setRunEnv(t)
	t.Setenv("LAYER", "adset")

	_, err := FromEnv()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestFromEnvInvalidMode(t *testing.T) {
	setRunEnv(t)
	t.Setenv("MODE", "yesterday")

	_, err := FromEnv()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
	assert.Contains(t, err.Error(), "'today', 'last3days', 'last7days', 'thismonth' and 'lastmonth'")
}

func TestModeDateRange(t *testing.T) {
	// Mid-March reference, afternoon, to prove midnight truncation.
	now := time.Date(2026, 3, 14, 15, 42, 7, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		mode  Mode
		start time.Time
		end   time.Time
	}{
		{ModeToday, day(2026, 3, 14), day(2026, 3, 14)},
		{ModeLast3Days, day(2026, 3, 11), day(2026, 3, 14)},
		{ModeLast7Days, day(2026, 3, 7), day(2026, 3, 14)},
		{ModeThisMonth, day(2026, 3, 1), day(2026, 3, 14)},
		{ModeLastMonth, day(2026, 2, 1), day(2026, 2, 28)},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			start, end, err := tt.mode.DateRange(now)
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestModeDateRangeLastMonthAcrossYear(t *testing.T) {
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	start, end, err := ModeLastMonth.DateRange(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), end)
}

func TestModeDateRangeInvalid(t *testing.T) {
	_, _, err := Mode("never").DateRange(time.Now())
	assert.Error(t, err)
}

func TestRunParamsTarget(t *testing.T) {
	p := RunParams{Company: "acme", Project: "pr", Platform: "tiktok", Department: "ecom", Account: "main"}

	target := p.Target()
	assert.Equal(t, "acme", target.Company)
	assert.Equal(t, "acme_dataset_tiktok_api_raw", target.RawDataset())
}

func TestRunParamsApplyTo(t *testing.T) {
	p := RunParams{Company: "acme", Project: "pr", Platform: "tiktok", Department: "ecom", Account: "main"}
	cfg := &models.Config{}

	p.ApplyTo(cfg)
	assert.Equal(t, "acme", cfg.Company)
	assert.Equal(t, "pr", cfg.Project)
	assert.Equal(t, "main", cfg.Account)
}
