package ingest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admart/internal/frame"
	"admart/internal/naming"
	"admart/internal/ui"
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

// fakeSink records warehouse calls and simulates table existence.
type fakeSink struct {
	existing map[string]bool

	created     []string
	createOpts  map[string]warehouse.CreateOptions
	loaded      map[string][]*frame.Frame
	deletedKeys map[string][]*frame.Frame
}

func newFakeSink(existing ...string) *fakeSink {
	s := &fakeSink{
		existing:    map[string]bool{},
		createOpts:  map[string]warehouse.CreateOptions{},
		loaded:      map[string][]*frame.Frame{},
		deletedKeys: map[string][]*frame.Frame{},
	}
	for _, t := range existing {
		s.existing[t] = true
	}
	return s
}

func (s *fakeSink) TableExists(ctx context.Context, dataset, table string) (bool, error) {
	return s.existing[dataset+"."+table], nil
}

func (s *fakeSink) CreateTable(ctx context.Context, dataset, table string, f *frame.Frame, opts warehouse.CreateOptions) error {
	qualified := dataset + "." + table
	s.created = append(s.created, qualified)
	s.createOpts[qualified] = opts
	s.existing[qualified] = true
	return nil
}

func (s *fakeSink) Load(ctx context.Context, dataset, table string, f *frame.Frame, mode warehouse.LoadMode) (int, error) {
	s.loaded[dataset+"."+table] = append(s.loaded[dataset+"."+table], f)
	return f.Len(), nil
}

func (s *fakeSink) DeleteByKeys(ctx context.Context, dataset, table string, keys *frame.Frame) (int64, error) {
	s.deletedKeys[dataset+"."+table] = append(s.deletedKeys[dataset+"."+table], keys)
	return int64(keys.Len()), nil
}

func (s *fakeSink) Query(ctx context.Context, query string, args ...interface{}) (*frame.Frame, error) {
	return frame.New(), nil
}

func (s *fakeSink) Exec(ctx context.Context, query string, args ...interface{}) error {
	return nil
}

func (s *fakeSink) ListTables(ctx context.Context, dataset, pattern string) ([]string, error) {
	return nil, nil
}

func (s *fakeSink) RowCount(ctx context.Context, dataset, table string) (int64, error) {
	return 0, nil
}

// fakeFetcher serves canned frames per operation.
type fakeFetcher struct {
	campaignMetadata func(ids []string) (*frame.Frame, error)
	adMetadata       func(ids []string) (*frame.Frame, error)
	adCreative       func(ids []string) (*frame.Frame, error)
	campaignInsights func(start, end time.Time) (*frame.Frame, error)
	adInsights       func(start, end time.Time) (*frame.Frame, error)
}

func (f *fakeFetcher) CampaignMetadata(ctx context.Context, advertiserID string, ids []string) (*frame.Frame, error) {
	return f.campaignMetadata(ids)
}

func (f *fakeFetcher) AdMetadata(ctx context.Context, advertiserID string, ids []string) (*frame.Frame, error) {
	return f.adMetadata(ids)
}

func (f *fakeFetcher) AdCreative(ctx context.Context, advertiserID string, ids []string) (*frame.Frame, error) {
	return f.adCreative(ids)
}

func (f *fakeFetcher) CampaignInsights(ctx context.Context, advertiserID string, start, end time.Time) (*frame.Frame, error) {
	return f.campaignInsights(start, end)
}

func (f *fakeFetcher) AdInsights(ctx context.Context, advertiserID string, start, end time.Time) (*frame.Frame, error) {
	return f.adInsights(start, end)
}

func campaignMetadataFrame(ids ...string) *frame.Frame {
	f := frame.New()
	for _, id := range ids {
		f.Append(frame.Row{
			"advertiser_id":    "a1",
			"advertiser_name":  "Acme Ads",
			"campaign_id":      id,
			"campaign_name":    "conversion_vn_bg1_fix_beauty_lan_live_pg1_video",
			"operation_status": "ENABLE",
			"objective_type":   "CONVERSIONS",
			"create_time":      "2026-03-01 00:00:00",
		})
	}
	return f
}

func TestCampaignMetadataCreatesTableOnFirstSight(t *testing.T) {
	sink := newFakeSink()
	fetcher := &fakeFetcher{
		campaignMetadata: func(ids []string) (*frame.Frame, error) {
			return campaignMetadataFrame(ids...), nil
		},
	}
	in := New(sink, fetcher, testTarget, "a1", nil)

	res, err := in.CampaignMetadata(context.Background(), []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, 2, res.RowsUploaded)

	table := "acme_dataset_tiktok_api_raw.acme_table_tiktok_ecom_main_campaign_metadata"
	require.Contains(t, sink.created, table)
	assert.Equal(t, []string{"campaign_id", "advertiser_id"}, sink.createOpts[table].ClusterBy)
	assert.Empty(t, sink.deletedKeys[table])
	require.Len(t, sink.loaded[table], 1)
}

func TestCampaignMetadataUpsertsExistingTable(t *testing.T) {
	table := "acme_dataset_tiktok_api_raw.acme_table_tiktok_ecom_main_campaign_metadata"
	sink := newFakeSink(table)
	fetcher := &fakeFetcher{
		campaignMetadata: func(ids []string) (*frame.Frame, error) {
			return campaignMetadataFrame(ids...), nil
		},
	}
	in := New(sink, fetcher, testTarget, "a1", nil)

	_, err := in.CampaignMetadata(context.Background(), []string{"c1", "c1", "c2"})
	require.NoError(t, err)

	assert.Empty(t, sink.created)
	require.Len(t, sink.deletedKeys[table], 1)
	keys := sink.deletedKeys[table][0]
	assert.Equal(t, []string{"campaign_id", "advertiser_id"}, keys.Columns())
	assert.Equal(t, 2, keys.Len()) // duplicate key tuple collapsed
}

func TestMetadataEmptyIDsFailsFast(t *testing.T) {
	called := false
	sink := newFakeSink()
	fetcher := &fakeFetcher{
		campaignMetadata: func(ids []string) (*frame.Frame, error) {
			called = true
			return nil, nil
		},
	}
	in := New(sink, fetcher, testTarget, "a1", nil)

	_, err := in.CampaignMetadata(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeEmptyInput))
	assert.False(t, called)
}

func TestMetadataFetchFailurePropagates(t *testing.T) {
	sink := newFakeSink()
	fetcher := &fakeFetcher{
		campaignMetadata: func(ids []string) (*frame.Frame, error) {
			return nil, errors.New(errors.ErrCodeEmptyUpstream, "nothing upstream")
		},
	}
	in := New(sink, fetcher, testTarget, "a1", nil)

	_, err := in.CampaignMetadata(context.Background(), []string{"c1"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFetchFailed))
	assert.Empty(t, sink.loaded)
}

func TestMetadataUnparseableValueYieldsPartial(t *testing.T) {
	sink := newFakeSink()
	fetcher := &fakeFetcher{
		campaignMetadata: func(ids []string) (*frame.Frame, error) {
			f := campaignMetadataFrame("c1")
			f.Row(0)["create_time"] = "soon"
			return f, nil
		},
	}
	in := New(sink, fetcher, testTarget, "a1", nil)

	res, err := in.CampaignMetadata(context.Background(), []string{"c1"})
	require.NoError(t, err)
	assert.Equal(t, StatusPartialFailed, res.Status)
	assert.Contains(t, res.Enforcement.FailedColumns, "create_time")
	assert.Equal(t, 1, res.RowsUploaded)
}

func TestMetadataKeylessBatchSkipsDeleteWithWarning(t *testing.T) {
	table := "acme_dataset_tiktok_api_raw.acme_table_tiktok_ecom_main_campaign_metadata"
	sink := newFakeSink(table)
	fetcher := &fakeFetcher{
		campaignMetadata: func(ids []string) (*frame.Frame, error) {
			f := campaignMetadataFrame("c1")
			f.Row(0)["campaign_id"] = ""
			return f, nil
		},
	}
	var buf bytes.Buffer
	in := New(sink, fetcher, testTarget, "a1", ui.NewUIWithWriter(false, false, &buf))

	res, err := in.CampaignMetadata(context.Background(), []string{"c1"})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)

	// No usable key tuples: the delete is skipped with a warning and
	// the append still lands the rows.
	assert.Empty(t, sink.deletedKeys[table])
	require.Len(t, sink.loaded[table], 1)
	assert.Contains(t, buf.String(), "skipping key-matched delete")
}

func insightFrame(day string, ids ...string) *frame.Frame {
	f := frame.New()
	for _, id := range ids {
		f.Append(frame.Row{
			"advertiser_id": "a1",
			"campaign_id":   id,
			"stat_time_day": day + " 00:00:00",
			"spend":         "5,000",
			"impressions":   "10",
		})
	}
	return f
}

func TestCampaignInsightsWritesMonthlyTables(t *testing.T) {
	sink := newFakeSink()
	fetcher := &fakeFetcher{
		campaignInsights: func(start, end time.Time) (*frame.Frame, error) {
			return insightFrame(start.Format("2006-01-02"), "c1"), nil
		},
	}
	in := New(sink, fetcher, testTarget, "a1", nil)

	start := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	res, err := in.CampaignInsights(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, 4, res.DaysSucceeded)
	assert.Equal(t, 0, res.DaysFailed)
	assert.Equal(t, 4, res.RowsUploaded)

	// The range spans a month boundary, so two monthly tables exist.
	jan := "acme_dataset_tiktok_api_raw.acme_table_tiktok_ecom_main_campaign_m012026"
	feb := "acme_dataset_tiktok_api_raw.acme_table_tiktok_ecom_main_campaign_m022026"
	assert.Len(t, sink.loaded[jan], 2)
	assert.Len(t, sink.loaded[feb], 2)
	assert.Equal(t, "date", sink.createOpts[jan].PartitionColumn)
}

func TestCampaignInsightsDerivedColumnsAndWatermark(t *testing.T) {
	sink := newFakeSink()
	fetcher := &fakeFetcher{
		campaignInsights: func(start, end time.Time) (*frame.Frame, error) {
			return insightFrame("2026-03-14", "c1"), nil
		},
	}
	in := New(sink, fetcher, testTarget, "a1", nil)

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	res, err := in.CampaignInsights(context.Background(), day, day)
	require.NoError(t, err)
	require.Equal(t, 1, res.Frame.Len())

	r := res.Frame.Row(0)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), r["date"])
	assert.Equal(t, "2026", r["year"])
	assert.Equal(t, "03", r["month"])
	assert.Equal(t, "2026-03-14", r["date_start"])
	assert.Equal(t, float64(5000), r["spend"])
	assert.IsType(t, time.Time{}, r["last_updated_at"])
}

func TestCampaignInsightsReplacesOverlappingDates(t *testing.T) {
	table := "acme_dataset_tiktok_api_raw.acme_table_tiktok_ecom_main_campaign_m032026"
	sink := newFakeSink(table)
	fetcher := &fakeFetcher{
		campaignInsights: func(start, end time.Time) (*frame.Frame, error) {
			return insightFrame("2026-03-14", "c1", "c2"), nil
		},
	}
	in := New(sink, fetcher, testTarget, "a1", nil)

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	_, err := in.CampaignInsights(context.Background(), day, day)
	require.NoError(t, err)

	require.Len(t, sink.deletedKeys[table], 1)
	keys := sink.deletedKeys[table][0]
	assert.Equal(t, []string{"date_start"}, keys.Columns())
	require.Equal(t, 1, keys.Len())
	assert.Equal(t, "2026-03-14", keys.Row(0)["date_start"])
}

func TestCampaignInsightsPartialDays(t *testing.T) {
	sink := newFakeSink()
	fetcher := &fakeFetcher{
		campaignInsights: func(start, end time.Time) (*frame.Frame, error) {
			if start.Day() == 2 {
				return nil, errors.New(errors.ErrCodeAPIStatus, "API error")
			}
			return insightFrame(start.Format("2006-01-02"), "c1"), nil
		},
	}
	in := New(sink, fetcher, testTarget, "a1", nil)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	res, err := in.CampaignInsights(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, StatusPartialFailed, res.Status)
	assert.Equal(t, 2, res.DaysSucceeded)
	assert.Equal(t, 1, res.DaysFailed)
}

func TestCampaignInsightsAllDaysEmpty(t *testing.T) {
	sink := newFakeSink()
	fetcher := &fakeFetcher{
		campaignInsights: func(start, end time.Time) (*frame.Frame, error) {
			return frame.New(), nil
		},
	}
	in := New(sink, fetcher, testTarget, "a1", nil)

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	res, err := in.CampaignInsights(context.Background(), day, day)
	require.NoError(t, err)
	assert.Equal(t, StatusFailedAll, res.Status)
	assert.Equal(t, 0, res.RowsUploaded)
	assert.Empty(t, sink.loaded)
}
