package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admart/internal/config"
	"admart/internal/update"
	"admart/pkg/errors"
)

// fakeRunner records which layer was driven and serves a canned run.
type fakeRunner struct {
	campaignCalls int
	adCalls       int
	run           *update.RunResult
}

func (f *fakeRunner) CampaignInsights(ctx context.Context, start, end time.Time) *update.RunResult {
	f.campaignCalls++
	return f.run
}

func (f *fakeRunner) AdInsights(ctx context.Context, start, end time.Time) *update.RunResult {
	f.adCalls++
	return f.run
}

func TestExecuteRunFailedStepsExitZero(t *testing.T) {
	runner := &fakeRunner{run: &update.RunResult{
		Layer: "campaign",
		Steps: []update.StepResult{
			{Name: "ingest campaign insights", Status: update.StepSucceeded},
			{Name: "ingest campaign metadata", Status: update.StepFailed, Detail: "no updated campaign IDs"},
			{Name: "rebuild campaign staging", Status: update.StepFailed, Detail: "no updated campaign IDs"},
		},
	}}
	require.True(t, runner.run.Failed())

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	err := executeRun(context.Background(), runner, config.LayerCampaign, day, day)

	// Step failures are part of a completed run, not a command error.
	assert.NoError(t, err)
	assert.Equal(t, 1, runner.campaignCalls)
	assert.Equal(t, 0, runner.adCalls)
}

func TestExecuteRunDispatchesAdLayer(t *testing.T) {
	runner := &fakeRunner{run: &update.RunResult{Layer: "ad"}}

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	err := executeRun(context.Background(), runner, config.LayerAd, day, day)

	require.NoError(t, err)
	assert.Equal(t, 0, runner.campaignCalls)
	assert.Equal(t, 1, runner.adCalls)
}

func TestExecuteRunUnknownLayer(t *testing.T) {
	err := executeRun(context.Background(), &fakeRunner{}, config.Layer("bogus"), time.Time{}, time.Time{})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}
