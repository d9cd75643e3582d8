// Package staging rebuilds the unified staging tables from every
// monthly raw table of an entity. Each rebuild joins insight rows with
// their metadata, derives the enrichment dimensions and fully replaces
// the staging table, so the staging layer is always a pure function of
// the raw layer.
package staging

import (
	"context"
	"fmt"
	"time"

	"admart/internal/enrich"
	"admart/internal/frame"
	"admart/internal/naming"
	"admart/internal/schema"
	"admart/internal/warehouse"
	"admart/pkg/errors"
)

// Status summarizes one staging rebuild.
type Status string

const (
	StatusSucceededAll  Status = "succeeded_all"
	StatusFailedPartial Status = "failed_partial"
	StatusFailedAll     Status = "failed_all"
)

// Result reports what a staging rebuild did.
type Result struct {
	Frame        *frame.Frame
	Status       Status
	TablesFound  int
	TablesUsed   int
	RowsUploaded int
	Enforcement  schema.Summary
	Elapsed      time.Duration
}

// clusterCandidates are the staging clustering columns, applied in
// order when present.
var clusterCandidates = []string{
	"enrich_program_group",
	"enrich_budget_group",
	"enrich_campaign_personnel",
}

// Stager rebuilds the staging layer for one target.
type Stager struct {
	sink   warehouse.Sink
	target naming.Target
	now    func() time.Time
}

// New creates a stager.
func New(sink warehouse.Sink, target naming.Target) *Stager {
	return &Stager{sink: sink, target: target, now: time.Now}
}

// CampaignInsights rebuilds the unified campaign staging table from
// every monthly raw campaign table.
func (s *Stager) CampaignInsights(ctx context.Context) (*Result, error) {
	rawDataset := s.target.RawDataset()
	metadataTable := s.target.RawTable(naming.EntityCampaignMetadata)

	return s.rebuild(ctx, rebuildSpec{
		entity:   naming.EntityCampaign,
		contract: schema.StagingCampaignInsights,
		query: func(rawTable string) string {
			return fmt.Sprintf(`SELECT raw.*, metadata.campaign_name, metadata.advertiser_name, metadata.operation_status, metadata.objective_type
FROM %s.%s AS raw
LEFT JOIN %s.%s AS metadata
  ON CAST(raw.campaign_id AS STRING) = CAST(metadata.campaign_id AS STRING)
 AND CAST(raw.advertiser_id AS STRING) = CAST(metadata.advertiser_id AS STRING)`,
				rawDataset, rawTable, rawDataset, metadataTable)
		},
		rename: map[string]string{
			"advertiser_id":    "account_id",
			"advertiser_name":  "account_name",
			"operation_status": "delivery_status",
			"objective_type":   "result_type",
		},
		enrich: enrich.Campaign,
	})
}

// AdInsights rebuilds the unified ad staging table, joining ad metadata
// and the creative assets behind each ad's video.
func (s *Stager) AdInsights(ctx context.Context) (*Result, error) {
	rawDataset := s.target.RawDataset()
	metadataTable := s.target.RawTable(naming.EntityAdMetadata)
	creativeTable := s.target.RawTable(naming.EntityAdCreative)

	return s.rebuild(ctx, rebuildSpec{
		entity:   naming.EntityAd,
		contract: schema.StagingAdInsights,
		query: func(rawTable string) string {
			return fmt.Sprintf(`SELECT raw.*, ad.ad_name, ad.adgroup_id, ad.adgroup_name, ad.campaign_id, ad.campaign_name, ad.operation_status, ad.ad_format, ad.optimization_event, ad.video_id, creative.video_cover_url, creative.preview_url
FROM %s.%s AS raw
LEFT JOIN %s.%s AS ad
  ON CAST(raw.ad_id AS STRING) = CAST(ad.ad_id AS STRING)
 AND CAST(raw.advertiser_id AS STRING) = CAST(ad.advertiser_id AS STRING)
LEFT JOIN %s.%s AS creative
  ON CAST(ad.video_id AS STRING) = CAST(creative.video_id AS STRING)
 AND CAST(raw.advertiser_id AS STRING) = CAST(creative.advertiser_id AS STRING)`,
				rawDataset, rawTable, rawDataset, metadataTable, rawDataset, creativeTable)
		},
		rename: map[string]string{
			"advertiser_id":    "account_id",
			"adgroup_id":       "adset_id",
			"adgroup_name":     "adset_name",
			"operation_status": "delivery_status",
		},
		enrich: enrich.Ad,
	})
}

type rebuildSpec struct {
	entity   string
	contract string
	query    func(rawTable string) string
	rename   map[string]string
	enrich   func(f *frame.Frame, tableID string)
}

func (s *Stager) rebuild(ctx context.Context, spec rebuildSpec) (*Result, error) {
	started := s.now()
	rawDataset := s.target.RawDataset()

	tables, err := s.sink.ListTables(ctx, rawDataset, s.target.MonthlyPattern(spec.entity))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "failed to scan raw tables").
			WithContext("entity", spec.entity)
	}
	if len(tables) == 0 {
		return nil, errors.New(errors.ErrCodeNoRawTables, "no raw tables found for staging rebuild").
			WithContext("entity", spec.entity).
			WithContext("pattern", s.target.MonthlyPattern(spec.entity))
	}

	var parts []*frame.Frame
	used := 0
	for _, rawTable := range tables {
		monthly, err := s.sink.Query(ctx, spec.query(rawTable))
		if err != nil {
			// One unreadable month degrades the rebuild, it does not
			// abort it.
			continue
		}
		used++
		if monthly.Empty() {
			// A month with no rows was still queried successfully; it
			// contributes nothing but does not degrade the rebuild.
			continue
		}
		monthly.Rename(spec.rename)
		spec.enrich(monthly, rawDataset+"."+rawTable)
		parts = append(parts, monthly)
	}

	result := &Result{TablesFound: len(tables), TablesUsed: used}
	if len(parts) == 0 {
		result.Status = StatusFailedAll
		result.Elapsed = s.now().Sub(started)
		return result, nil
	}

	combined := frame.Concat(parts...)
	enforced := schema.Enforce(combined, spec.contract)
	deduped := enforced.Frame.Deduplicate()
	result.Enforcement = enforced.Summary

	if err := s.replace(ctx, spec.entity, deduped); err != nil {
		result.Status = StatusFailedAll
		result.Elapsed = s.now().Sub(started)
		return result, err
	}

	result.Frame = deduped
	result.RowsUploaded = deduped.Len()
	if result.TablesUsed < result.TablesFound {
		result.Status = StatusFailedPartial
	} else {
		result.Status = StatusSucceededAll
	}
	result.Elapsed = s.now().Sub(started)
	return result, nil
}

// replace creates the staging table on first sight (partitioned on
// date, clustered on the enrichment dimensions) and fully replaces its
// rows.
func (s *Stager) replace(ctx context.Context, entity string, f *frame.Frame) error {
	dataset := s.target.StagingDataset()
	table := s.target.StagingTable(entity)

	exists, err := s.sink.TableExists(ctx, dataset, table)
	if err != nil {
		return err
	}
	if !exists {
		opts := warehouse.CreateOptions{}
		if f.HasColumn("date") {
			opts.PartitionColumn = "date"
		}
		for _, c := range clusterCandidates {
			if f.HasColumn(c) {
				opts.ClusterBy = append(opts.ClusterBy, c)
			}
		}
		if err := s.sink.CreateTable(ctx, dataset, table, f, opts); err != nil {
			return err
		}
	}

	_, err = s.sink.Load(ctx, dataset, table, f, warehouse.LoadTruncate)
	return err
}
