package mart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admart/internal/frame"
	"admart/internal/naming"
	"admart/internal/warehouse"
	"admart/pkg/errors"
)

var testTarget = naming.Target{
	Company:    "acme",
	Project:    "acme-analytics",
	Platform:   "tiktok",
	Department: "ecom",
	Account:    "main",
}

type fakeSink struct {
	execQueries []string
	execErr     error
	rowCount    int64
	countTable  string
}

func (s *fakeSink) TableExists(ctx context.Context, dataset, table string) (bool, error) {
	return false, nil
}

func (s *fakeSink) CreateTable(ctx context.Context, dataset, table string, f *frame.Frame, opts warehouse.CreateOptions) error {
	return nil
}

func (s *fakeSink) Load(ctx context.Context, dataset, table string, f *frame.Frame, mode warehouse.LoadMode) (int, error) {
	return 0, nil
}

func (s *fakeSink) DeleteByKeys(ctx context.Context, dataset, table string, keys *frame.Frame) (int64, error) {
	return 0, nil
}

func (s *fakeSink) Query(ctx context.Context, query string, args ...interface{}) (*frame.Frame, error) {
	return frame.New(), nil
}

func (s *fakeSink) Exec(ctx context.Context, query string, args ...interface{}) error {
	s.execQueries = append(s.execQueries, query)
	return s.execErr
}

func (s *fakeSink) ListTables(ctx context.Context, dataset, pattern string) ([]string, error) {
	return nil, nil
}

func (s *fakeSink) RowCount(ctx context.Context, dataset, table string) (int64, error) {
	s.countTable = dataset + "." + table
	return s.rowCount, nil
}

func TestCampaignPerformance(t *testing.T) {
	sink := &fakeSink{rowCount: 42}

	res, err := New(sink, testTarget).CampaignPerformance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, int64(42), res.RowCount)
	assert.Equal(t, "acme_table_tiktok_all_all_campaign_performance", res.Table)
	assert.Equal(t, "acme_dataset_tiktok_api_mart.acme_table_tiktok_all_all_campaign_performance", sink.countTable)

	require.Len(t, sink.execQueries, 1)
	q := sink.execQueries[0]
	assert.Contains(t, q, "CREATE OR REPLACE TABLE acme_dataset_tiktok_api_mart.acme_table_tiktok_all_all_campaign_performance")
	assert.Contains(t, q, "PARTITION BY report_date")
	assert.Contains(t, q, "CLUSTER BY personnel, budget_group, category_group, program_group")
	assert.Contains(t, q, "FROM acme_dataset_tiktok_api_staging.acme_table_tiktok_all_all_campaign_insights")
	assert.Contains(t, q, "WHERE date IS NOT NULL")
	assert.Contains(t, q, "CAST(enrich_campaign_personnel AS STRING) AS personnel")
	// Delivery status renders as the dashboard glyphs.
	assert.Contains(t, q, "WHEN RLIKE(delivery_status, 'ENABLE') THEN '🟢'")
	assert.Contains(t, q, "WHEN RLIKE(delivery_status, 'DISABLE') THEN '⚪'")
	assert.Contains(t, q, "ELSE '❓'")
}

func TestCreativePerformance(t *testing.T) {
	sink := &fakeSink{rowCount: 7}

	res, err := New(sink, testTarget).CreativePerformance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "acme_table_tiktok_all_all_creative_performance", res.Table)

	require.Len(t, sink.execQueries, 1)
	q := sink.execQueries[0]
	assert.Contains(t, q, "FROM acme_dataset_tiktok_api_staging.acme_table_tiktok_all_all_ad_insights")
	assert.Contains(t, q, "CAST(video_cover_url AS STRING) AS video_cover_url")
	assert.Contains(t, q, "CAST(adset_name AS STRING) AS adset_name")
	assert.Contains(t, q, "CAST(enrich_adset_format AS STRING) AS adset_format")
}

func TestRebuildFailurePreservesResult(t *testing.T) {
	sink := &fakeSink{execErr: errors.New(errors.ErrCodeSQLExecution, "boom")}

	res, err := New(sink, testTarget).CampaignPerformance(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSQLExecution))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "acme_table_tiktok_all_all_campaign_performance", res.Table)
}
