// Package ingest writes vendor data into the raw warehouse layer.
// Metadata and creative tables are upserted by entity key; insight
// tables are monthly partitions upserted by report date, one fetch per
// day so a single bad day never poisons the whole range.
package ingest

import (
	"context"
	"time"

	"admart/internal/frame"
	"admart/internal/naming"
	"admart/internal/schema"
	"admart/internal/ui"
	"admart/internal/warehouse"
	"admart/pkg/errors"
)

// Status summarizes one ingestion run.
type Status string

const (
	StatusSucceeded     Status = "success"
	StatusPartialFailed Status = "partial_failed"
	StatusFailedAll     Status = "failed_all"
	StatusFailed        Status = "failed"
)

// Result reports what an ingestion operation did.
type Result struct {
	Frame         *frame.Frame
	Status        Status
	Enforcement   schema.Summary
	RowsUploaded  int
	DaysSucceeded int
	DaysFailed    int
	Elapsed       time.Duration
}

// Fetcher is the slice of the API client the ingest layer needs.
type Fetcher interface {
	CampaignMetadata(ctx context.Context, advertiserID string, campaignIDs []string) (*frame.Frame, error)
	AdMetadata(ctx context.Context, advertiserID string, adIDs []string) (*frame.Frame, error)
	AdCreative(ctx context.Context, advertiserID string, adIDs []string) (*frame.Frame, error)
	CampaignInsights(ctx context.Context, advertiserID string, start, end time.Time) (*frame.Frame, error)
	AdInsights(ctx context.Context, advertiserID string, start, end time.Time) (*frame.Frame, error)
}

// Ingestor orchestrates the raw layer for one target account.
type Ingestor struct {
	sink         warehouse.Sink
	fetcher      Fetcher
	target       naming.Target
	advertiserID string
	console      *ui.UI
	now          func() time.Time
}

// New creates an ingestor bound to one advertiser account. A nil
// console silences progress output.
func New(sink warehouse.Sink, fetcher Fetcher, target naming.Target, advertiserID string, console *ui.UI) *Ingestor {
	if console == nil {
		console = ui.NewUI(false, true)
	}
	return &Ingestor{
		sink:         sink,
		fetcher:      fetcher,
		target:       target,
		advertiserID: advertiserID,
		console:      console,
		now:          time.Now,
	}
}

// CampaignMetadata upserts campaign metadata for the given IDs into the
// raw metadata table, keyed by (campaign_id, advertiser_id).
func (in *Ingestor) CampaignMetadata(ctx context.Context, campaignIDs []string) (*Result, error) {
	return in.metadata(ctx, metadataSpec{
		entity:   naming.EntityCampaignMetadata,
		contract: schema.IngestCampaignMetadata,
		keys:     []string{"campaign_id", "advertiser_id"},
		fetch: func(ctx context.Context) (*frame.Frame, error) {
			return in.fetcher.CampaignMetadata(ctx, in.advertiserID, campaignIDs)
		},
		ids: campaignIDs,
	})
}

// AdMetadata upserts ad metadata for the given IDs, keyed by
// (ad_id, advertiser_id).
func (in *Ingestor) AdMetadata(ctx context.Context, adIDs []string) (*Result, error) {
	return in.metadata(ctx, metadataSpec{
		entity:   naming.EntityAdMetadata,
		contract: schema.IngestAdMetadata,
		keys:     []string{"ad_id", "advertiser_id"},
		fetch: func(ctx context.Context) (*frame.Frame, error) {
			return in.fetcher.AdMetadata(ctx, in.advertiserID, adIDs)
		},
		ids: adIDs,
	})
}

// AdCreative upserts creative assets for the given ads, keyed by
// (video_id, advertiser_id).
func (in *Ingestor) AdCreative(ctx context.Context, adIDs []string) (*Result, error) {
	return in.metadata(ctx, metadataSpec{
		entity:   naming.EntityAdCreative,
		contract: schema.IngestAdCreative,
		keys:     []string{"video_id", "advertiser_id"},
		fetch: func(ctx context.Context) (*frame.Frame, error) {
			return in.fetcher.AdCreative(ctx, in.advertiserID, adIDs)
		},
		ids: adIDs,
	})
}

type metadataSpec struct {
	entity   string
	contract string
	keys     []string
	fetch    func(ctx context.Context) (*frame.Frame, error)
	ids      []string
}

func (in *Ingestor) metadata(ctx context.Context, spec metadataSpec) (*Result, error) {
	started := in.now()
	if len(spec.ids) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "no entity IDs provided for metadata ingestion").
			WithContext("entity", spec.entity)
	}

	fetched, err := spec.fetch(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFetchFailed, "metadata fetch failed").
			WithContext("entity", spec.entity)
	}

	enforced := schema.Enforce(fetched, spec.contract)
	if enforced.Status == schema.StatusFailed {
		return nil, errors.New(errors.ErrCodeUnknownSchema, "metadata enforcement failed").
			WithContext("contract", spec.contract)
	}

	deduped := enforced.Frame.Deduplicate()
	table := in.target.RawTable(spec.entity)
	dataset := in.target.RawDataset()

	if err := in.upsert(ctx, dataset, table, deduped, spec.keys); err != nil {
		return nil, err
	}

	status := StatusSucceeded
	if enforced.Status == schema.StatusPartial {
		status = StatusPartialFailed
	}
	return &Result{
		Frame:        deduped,
		Status:       status,
		Enforcement:  enforced.Summary,
		RowsUploaded: deduped.Len(),
		Elapsed:      in.now().Sub(started),
	}, nil
}

// upsert creates the table on first sight (partitioned on date when
// present, clustered on whichever key columns exist) and otherwise
// deletes rows matching the incoming entity keys before appending.
// Rows whose key columns are all empty skip the deletion; they would
// match nothing and the append still lands them.
func (in *Ingestor) upsert(ctx context.Context, dataset, table string, f *frame.Frame, keyCols []string) error {
	exists, err := in.sink.TableExists(ctx, dataset, table)
	if err != nil {
		return err
	}

	if !exists {
		opts := warehouse.CreateOptions{}
		if f.HasColumn("date") {
			opts.PartitionColumn = "date"
		}
		for _, k := range keyCols {
			if f.HasColumn(k) {
				opts.ClusterBy = append(opts.ClusterBy, k)
			}
		}
		if err := in.sink.CreateTable(ctx, dataset, table, f, opts); err != nil {
			return err
		}
	} else {
		keys := keyFrame(f, keyCols)
		if keys.Empty() {
			in.console.Warning("skipping key-matched delete on %s: no fully populated key tuples in the batch", table)
		} else if _, err := in.sink.DeleteByKeys(ctx, dataset, table, keys); err != nil {
			return err
		}
	}

	_, err = in.sink.Load(ctx, dataset, table, f, warehouse.LoadAppend)
	return err
}

// keyFrame extracts the distinct, fully populated key tuples of a frame.
func keyFrame(f *frame.Frame, keyCols []string) *frame.Frame {
	keys := frame.New(keyCols...)
	for _, r := range f.Rows() {
		kr := make(frame.Row, len(keyCols))
		complete := true
		for _, k := range keyCols {
			v := frame.Stringify(r[k])
			if v == "" {
				complete = false
				break
			}
			kr[k] = v
		}
		if complete {
			keys.Append(kr)
		}
	}
	return keys.Deduplicate()
}

// CampaignInsights ingests daily campaign performance for the inclusive
// date range into monthly raw tables, replacing any overlapping report
// dates.
func (in *Ingestor) CampaignInsights(ctx context.Context, start, end time.Time) (*Result, error) {
	return in.insights(ctx, insightSpec{
		entity:   naming.EntityCampaign,
		contract: schema.IngestCampaignInsights,
		fetch:    in.fetcher.CampaignInsights,
	}, start, end)
}

// AdInsights ingests daily ad performance for the inclusive date range.
func (in *Ingestor) AdInsights(ctx context.Context, start, end time.Time) (*Result, error) {
	return in.insights(ctx, insightSpec{
		entity:   naming.EntityAd,
		contract: schema.IngestAdInsights,
		fetch:    in.fetcher.AdInsights,
	}, start, end)
}

type insightSpec struct {
	entity   string
	contract string
	fetch    func(ctx context.Context, advertiserID string, start, end time.Time) (*frame.Frame, error)
}

func (in *Ingestor) insights(ctx context.Context, spec insightSpec, start, end time.Time) (*Result, error) {
	started := in.now()
	dataset := in.target.RawDataset()

	var uploaded []*frame.Frame
	var enforcement schema.Summary
	daysTotal := 0

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		daysTotal++

		fetched, err := spec.fetch(ctx, in.advertiserID, day, day)
		if err != nil || fetched.Empty() {
			continue
		}

		// Stamp the load watermark before enforcement so it survives
		// the contract pass.
		fetched.SetConstant("last_updated_at", in.now().UTC())

		enforced := schema.Enforce(fetched, spec.contract)
		if enforced.Status == schema.StatusFailed {
			continue
		}
		enforcement = enforced.Summary

		deriveReportDateColumns(enforced.Frame)

		table := in.target.MonthlyRawTable(spec.entity, day)
		deduped := enforced.Frame.Deduplicate()

		if err := in.upsertInsights(ctx, dataset, table, deduped); err != nil {
			continue
		}
		uploaded = append(uploaded, deduped)
	}

	final := frame.Concat(uploaded...)
	result := &Result{
		Frame:         final,
		Enforcement:   enforcement,
		RowsUploaded:  final.Len(),
		DaysSucceeded: len(uploaded),
		DaysFailed:    daysTotal - len(uploaded),
		Elapsed:       in.now().Sub(started),
	}
	switch {
	case result.DaysSucceeded == 0:
		result.Status = StatusFailedAll
	case result.DaysFailed > 0:
		result.Status = StatusPartialFailed
	default:
		result.Status = StatusSucceeded
	}
	return result, nil
}

// deriveReportDateColumns adds the date, year, month and date_start
// columns derived from the vendor's stat_time_day dimension.
func deriveReportDateColumns(f *frame.Frame) {
	parse := func(r frame.Row) (time.Time, bool) {
		s := frame.Stringify(r["stat_time_day"])
		if len(s) >= 10 {
			if ts, err := time.ParseInLocation("2006-01-02", s[:10], time.UTC); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	}
	f.SetColumn("date", func(r frame.Row) frame.Value {
		if ts, ok := parse(r); ok {
			return ts
		}
		return nil
	})
	f.SetColumn("year", func(r frame.Row) frame.Value {
		if ts, ok := parse(r); ok {
			return ts.Format("2006")
		}
		return ""
	})
	f.SetColumn("month", func(r frame.Row) frame.Value {
		if ts, ok := parse(r); ok {
			return ts.Format("01")
		}
		return ""
	})
	f.SetColumn("date_start", func(r frame.Row) frame.Value {
		if ts, ok := parse(r); ok {
			return ts.Format("2006-01-02")
		}
		return ""
	})
}

// upsertInsights creates the monthly table on first sight (partitioned
// on date) and otherwise deletes rows whose date_start overlaps the
// incoming batch before appending.
func (in *Ingestor) upsertInsights(ctx context.Context, dataset, table string, f *frame.Frame) error {
	exists, err := in.sink.TableExists(ctx, dataset, table)
	if err != nil {
		return err
	}

	if !exists {
		opts := warehouse.CreateOptions{}
		if f.HasColumn("date") {
			opts.PartitionColumn = "date"
		}
		if err := in.sink.CreateTable(ctx, dataset, table, f, opts); err != nil {
			return err
		}
	} else if dates := f.DistinctValues("date_start"); len(dates) > 0 {
		keys := frame.New("date_start")
		for _, d := range dates {
			keys.Append(frame.Row{"date_start": d})
		}
		if _, err := in.sink.DeleteByKeys(ctx, dataset, table, keys); err != nil {
			return err
		}
	}

	_, err = in.sink.Load(ctx, dataset, table, f, warehouse.LoadAppend)
	return err
}
