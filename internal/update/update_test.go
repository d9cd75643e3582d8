package update

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admart/internal/frame"
	"admart/internal/ingest"
	"admart/internal/mart"
	"admart/internal/staging"
	"admart/internal/ui"
	"admart/pkg/errors"
)

type fakeIngestor struct {
	insightFrame *frame.Frame
	insightErr   error

	metadataCalls []string
	creativeCalls [][]string
	metadataIDs   [][]string
}

func insightResult(f *frame.Frame) *ingest.Result {
	return &ingest.Result{Frame: f, Status: ingest.StatusSucceeded, RowsUploaded: f.Len(), DaysSucceeded: 1}
}

func (i *fakeIngestor) CampaignInsights(ctx context.Context, start, end time.Time) (*ingest.Result, error) {
	if i.insightErr != nil {
		return nil, i.insightErr
	}
	return insightResult(i.insightFrame), nil
}

func (i *fakeIngestor) AdInsights(ctx context.Context, start, end time.Time) (*ingest.Result, error) {
	return i.CampaignInsights(ctx, start, end)
}

func (i *fakeIngestor) CampaignMetadata(ctx context.Context, ids []string) (*ingest.Result, error) {
	i.metadataCalls = append(i.metadataCalls, "campaign_metadata")
	i.metadataIDs = append(i.metadataIDs, ids)
	return &ingest.Result{Frame: frame.New(), Status: ingest.StatusSucceeded}, nil
}

func (i *fakeIngestor) AdMetadata(ctx context.Context, ids []string) (*ingest.Result, error) {
	i.metadataCalls = append(i.metadataCalls, "ad_metadata")
	i.metadataIDs = append(i.metadataIDs, ids)
	return &ingest.Result{Frame: frame.New(), Status: ingest.StatusSucceeded}, nil
}

func (i *fakeIngestor) AdCreative(ctx context.Context, ids []string) (*ingest.Result, error) {
	i.metadataCalls = append(i.metadataCalls, "ad_creative")
	i.creativeCalls = append(i.creativeCalls, ids)
	return &ingest.Result{Frame: frame.New(), Status: ingest.StatusSucceeded}, nil
}

type fakeStager struct {
	status staging.Status
	err    error
	calls  int
}

func (s *fakeStager) CampaignInsights(ctx context.Context) (*staging.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &staging.Result{Status: s.status, TablesFound: 2, TablesUsed: 2, RowsUploaded: 10}, nil
}

func (s *fakeStager) AdInsights(ctx context.Context) (*staging.Result, error) {
	return s.CampaignInsights(ctx)
}

type fakeMarter struct {
	calls int
	err   error
}

func (m *fakeMarter) CampaignPerformance(ctx context.Context) (*mart.Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &mart.Result{Table: "mart_table", RowCount: 10, Status: mart.StatusSucceeded}, nil
}

func (m *fakeMarter) CreativePerformance(ctx context.Context) (*mart.Result, error) {
	return m.CampaignPerformance(ctx)
}

func campaignFrame(ids ...string) *frame.Frame {
	f := frame.New()
	for _, id := range ids {
		f.Append(frame.Row{"campaign_id": id, "ad_id": id})
	}
	return f
}

func quietUpdater(i Ingestor, s Stager, m Marter) *Updater {
	return New(i, s, m, ui.NewUI(false, true))
}

var (
	runStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	runEnd   = time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
)

func stepNames(run *RunResult) []string {
	names := make([]string, len(run.Steps))
	for i, s := range run.Steps {
		names[i] = s.Name
	}
	return names
}

func TestCampaignLayerFullRun(t *testing.T) {
	ingestor := &fakeIngestor{insightFrame: campaignFrame("c1", "c2")}
	stager := &fakeStager{status: staging.StatusSucceededAll}
	marter := &fakeMarter{}

	run := quietUpdater(ingestor, stager, marter).CampaignInsights(context.Background(), runStart, runEnd)

	assert.Equal(t, "campaign", run.Layer)
	assert.Equal(t, []string{
		"ingest campaign insights",
		"ingest campaign metadata",
		"rebuild campaign staging",
		"materialize campaign performance",
	}, stepNames(run))
	for _, s := range run.Steps {
		assert.Equal(t, StepSucceeded, s.Status, s.Name)
	}
	assert.False(t, run.Failed())

	require.Len(t, ingestor.metadataIDs, 1)
	assert.Equal(t, []string{"c1", "c2"}, ingestor.metadataIDs[0])
	assert.Equal(t, 1, stager.calls)
	assert.Equal(t, 1, marter.calls)
}

func TestCampaignLayerNothingUpdatedFailsDownstreamWithoutExecuting(t *testing.T) {
	ingestor := &fakeIngestor{insightFrame: frame.New()}
	stager := &fakeStager{status: staging.StatusSucceededAll}
	marter := &fakeMarter{}

	run := quietUpdater(ingestor, stager, marter).CampaignInsights(context.Background(), runStart, runEnd)

	require.Len(t, run.Steps, 4)
	// Downstream steps are recorded as failed, not silently skipped.
	for _, s := range run.Steps[1:] {
		assert.Equal(t, StepFailed, s.Status, s.Name)
	}
	assert.True(t, run.Failed())
	assert.Empty(t, ingestor.metadataCalls)
	assert.Equal(t, 0, stager.calls)
	assert.Equal(t, 0, marter.calls)
}

func TestCampaignLayerInsightErrorFailsRun(t *testing.T) {
	ingestor := &fakeIngestor{insightErr: errors.New(errors.ErrCodeFetchFailed, "API down")}
	stager := &fakeStager{status: staging.StatusSucceededAll}
	marter := &fakeMarter{}

	run := quietUpdater(ingestor, stager, marter).CampaignInsights(context.Background(), runStart, runEnd)

	assert.Equal(t, StepFailed, run.Steps[0].Status)
	assert.Contains(t, run.Steps[0].Detail, "API down")
	assert.True(t, run.Failed())
	assert.Equal(t, 0, marter.calls)
}

func TestCampaignLayerMartGatedOnStagingOutcome(t *testing.T) {
	tests := []struct {
		name       string
		status     staging.Status
		stagingErr error
		martRuns   bool
	}{
		{"succeeded all", staging.StatusSucceededAll, nil, true},
		{"failed partial still materializes", staging.StatusFailedPartial, nil, true},
		{"failed all blocks mart", staging.StatusFailedAll, nil, false},
		{"staging error blocks mart", "", errors.New(errors.ErrCodeNoRawTables, "no raw tables"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingestor := &fakeIngestor{insightFrame: campaignFrame("c1")}
			stager := &fakeStager{status: tt.status, err: tt.stagingErr}
			marter := &fakeMarter{}

			run := quietUpdater(ingestor, stager, marter).CampaignInsights(context.Background(), runStart, runEnd)

			if tt.martRuns {
				assert.Equal(t, 1, marter.calls)
				assert.Equal(t, StepSucceeded, run.Steps[3].Status)
			} else {
				assert.Equal(t, 0, marter.calls)
				assert.Equal(t, StepFailed, run.Steps[3].Status)
				assert.True(t, run.Failed())
			}
		})
	}
}

func TestAdLayerFullRun(t *testing.T) {
	ingestor := &fakeIngestor{insightFrame: campaignFrame("ad1", "ad2")}
	stager := &fakeStager{status: staging.StatusSucceededAll}
	marter := &fakeMarter{}

	run := quietUpdater(ingestor, stager, marter).AdInsights(context.Background(), runStart, runEnd)

	assert.Equal(t, "ad", run.Layer)
	assert.Equal(t, []string{
		"ingest ad insights",
		"ingest ad metadata",
		"ingest ad creative",
		"rebuild ad staging",
		"materialize creative performance",
	}, stepNames(run))
	assert.False(t, run.Failed())

	assert.Equal(t, []string{"ad_metadata", "ad_creative"}, ingestor.metadataCalls)
	require.Len(t, ingestor.creativeCalls, 1)
	assert.Equal(t, []string{"ad1", "ad2"}, ingestor.creativeCalls[0])
}

func TestPartialIngestStillProceeds(t *testing.T) {
	ingestor := &fakeIngestor{insightFrame: campaignFrame("c1")}
	stager := &fakeStager{status: staging.StatusSucceededAll}
	marter := &fakeMarter{}
	u := quietUpdater(ingestor, stager, marter)

	// A partial insight day still yields updated IDs, so downstream runs.
	run := u.CampaignInsights(context.Background(), runStart, runEnd)
	assert.Equal(t, 1, stager.calls)
	assert.Equal(t, 1, marter.calls)
	assert.False(t, run.Failed())
}
