// Package mart materializes the analytics-facing performance tables
// from the staging layer. Each mart table is rebuilt by a single
// CREATE OR REPLACE statement, so the rebuild either fully succeeds or
// leaves the previous table intact.
package mart

import (
	"context"
	"fmt"
	"time"

	"admart/internal/naming"
	"admart/internal/warehouse"
	"admart/pkg/errors"
)

// Status is the two-way outcome of a mart rebuild.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result reports one mart rebuild.
type Result struct {
	Table    string
	RowCount int64
	Status   Status
	Elapsed  time.Duration
}

// deliveryGlyph renders the operational delivery status as the glyph
// the dashboards show: green for enabled, white for disabled, question
// mark for anything unexpected.
const deliveryGlyph = `CASE
    WHEN RLIKE(delivery_status, 'ENABLE') THEN '🟢'
    WHEN RLIKE(delivery_status, 'DISABLE') THEN '⚪'
    ELSE '❓'
END AS status`

// Marter rebuilds the mart layer for one target.
type Marter struct {
	sink   warehouse.Sink
	target naming.Target
	now    func() time.Time
}

// New creates a marter.
func New(sink warehouse.Sink, target naming.Target) *Marter {
	return &Marter{sink: sink, target: target, now: time.Now}
}

// CampaignPerformance rebuilds the campaign performance mart table from
// the campaign staging table.
func (m *Marter) CampaignPerformance(ctx context.Context) (*Result, error) {
	stagingTable := m.target.StagingDataset() + "." + m.target.StagingTable(naming.EntityCampaign)
	martTable := m.target.MartTable(naming.EntityCampaign)

	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s.%s
PARTITION BY report_date
CLUSTER BY personnel, budget_group, category_group, program_group
AS
SELECT
    CAST(enrich_campaign_personnel AS STRING) AS personnel,
    CAST(enrich_budget_group AS STRING) AS budget_group,
    CAST(enrich_campaign_region AS STRING) AS region,
    CAST(enrich_program_group AS STRING) AS program_group,
    CAST(enrich_program_type AS STRING) AS program_type,
    CAST(enrich_account_platform AS STRING) AS platform,
    CAST(enrich_campaign_objective AS STRING) AS objective,
    CAST(enrich_category_group AS STRING) AS category_group,
    CAST(campaign_name AS STRING) AS campaign_name,
    CAST(date AS DATE) AS report_date,
    CAST(spend AS FLOAT64) AS spend,
    CAST(result AS INT64) AS result,
    CAST(result_type AS STRING) AS result_type,
    CAST(impressions AS INT64) AS impressions,
    CAST(clicks AS INT64) AS clicks,
    CAST(engaged_view_15s AS INT64) AS engaged_view_15s,
    CAST(purchase AS INT64) AS purchase,
    %s
FROM %s
WHERE date IS NOT NULL`,
		m.target.MartDataset(), martTable, deliveryGlyph, stagingTable)

	return m.rebuild(ctx, martTable, query)
}

// CreativePerformance rebuilds the creative performance mart table from
// the ad staging table.
func (m *Marter) CreativePerformance(ctx context.Context) (*Result, error) {
	stagingTable := m.target.StagingDataset() + "." + m.target.StagingTable(naming.EntityAd)
	martTable := m.target.MartTable(naming.EntityCreative)

	query := fmt.Sprintf(`CREATE OR REPLACE TABLE %s.%s
PARTITION BY report_date
CLUSTER BY personnel, budget_group, category_group, program_group
AS
SELECT
    CAST(enrich_campaign_personnel AS STRING) AS personnel,
    CAST(enrich_budget_group AS STRING) AS budget_group,
    CAST(enrich_campaign_region AS STRING) AS region,
    CAST(enrich_program_group AS STRING) AS program_group,
    CAST(enrich_program_type AS STRING) AS program_type,
    CAST(enrich_account_platform AS STRING) AS platform,
    CAST(enrich_campaign_objective AS STRING) AS objective,
    CAST(enrich_category_group AS STRING) AS category_group,
    CAST(campaign_name AS STRING) AS campaign_name,
    CAST(adset_name AS STRING) AS adset_name,
    CAST(ad_name AS STRING) AS ad_name,
    CAST(video_cover_url AS STRING) AS video_cover_url,
    CAST(preview_url AS STRING) AS preview_url,
    CAST(enrich_adset_location AS STRING) AS adset_location,
    CAST(enrich_adset_audience AS STRING) AS adset_audience,
    CAST(enrich_adset_format AS STRING) AS adset_format,
    CAST(date AS DATE) AS report_date,
    CAST(spend AS FLOAT64) AS spend,
    CAST(result AS INT64) AS result,
    CAST(impressions AS INT64) AS impressions,
    CAST(clicks AS INT64) AS clicks,
    %s
FROM %s
WHERE date IS NOT NULL`,
		m.target.MartDataset(), martTable, deliveryGlyph, stagingTable)

	return m.rebuild(ctx, martTable, query)
}

func (m *Marter) rebuild(ctx context.Context, table, query string) (*Result, error) {
	started := m.now()
	result := &Result{Table: table, Status: StatusFailed}

	if err := m.sink.Exec(ctx, query); err != nil {
		result.Elapsed = m.now().Sub(started)
		return result, errors.Wrap(err, errors.ErrCodeSQLExecution, "failed to materialize mart table").
			WithContext("table", table)
	}

	count, err := m.sink.RowCount(ctx, m.target.MartDataset(), table)
	if err != nil {
		result.Elapsed = m.now().Sub(started)
		return result, err
	}

	result.RowCount = count
	result.Status = StatusSucceeded
	result.Elapsed = m.now().Sub(started)
	return result, nil
}
