// Package update orchestrates a full pipeline run for one layer:
// insight ingestion, metadata backfill for the touched entities,
// staging rebuild and mart materialization. Steps run in order; a
// failed step is recorded and the run continues so the summary always
// shows every step's outcome.
package update

import (
	"context"
	"fmt"
	"time"

	"admart/internal/ingest"
	"admart/internal/mart"
	"admart/internal/staging"
	"admart/internal/ui"
)

// StepStatus is the recorded outcome of one pipeline step.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepPartial   StepStatus = "partial"
	StepFailed    StepStatus = "failed"
)

// StepResult records one step of a run. Every declared step of a run
// is recorded exactly once, executed or not.
type StepResult struct {
	Name    string
	Status  StepStatus
	Detail  string
	Elapsed time.Duration
}

// RunResult is the outcome of one layer run.
type RunResult struct {
	Layer   string
	Steps   []StepResult
	Elapsed time.Duration
}

// Failed reports whether any step of the run failed.
func (r *RunResult) Failed() bool {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}

// Ingestor is the raw-layer surface the updater drives.
type Ingestor interface {
	CampaignInsights(ctx context.Context, start, end time.Time) (*ingest.Result, error)
	AdInsights(ctx context.Context, start, end time.Time) (*ingest.Result, error)
	CampaignMetadata(ctx context.Context, campaignIDs []string) (*ingest.Result, error)
	AdMetadata(ctx context.Context, adIDs []string) (*ingest.Result, error)
	AdCreative(ctx context.Context, adIDs []string) (*ingest.Result, error)
}

// Stager is the staging-layer surface the updater drives.
type Stager interface {
	CampaignInsights(ctx context.Context) (*staging.Result, error)
	AdInsights(ctx context.Context) (*staging.Result, error)
}

// Marter is the mart-layer surface the updater drives.
type Marter interface {
	CampaignPerformance(ctx context.Context) (*mart.Result, error)
	CreativePerformance(ctx context.Context) (*mart.Result, error)
}

// Updater runs the layered pipeline end to end.
type Updater struct {
	ingestor Ingestor
	stager   Stager
	marter   Marter
	console  *ui.UI
	now      func() time.Time
}

// New creates an updater.
func New(ingestor Ingestor, stager Stager, marter Marter, console *ui.UI) *Updater {
	return &Updater{
		ingestor: ingestor,
		stager:   stager,
		marter:   marter,
		console:  console,
		now:      time.Now,
	}
}

// CampaignInsights runs the campaign layer for the inclusive date
// range: ingest insights, backfill metadata for the campaigns the
// insights touched, rebuild staging, materialize the mart. Later steps
// are gated on the insight ingestion having produced updated campaign
// IDs; with nothing updated they are recorded as failed without
// executing.
func (u *Updater) CampaignInsights(ctx context.Context, start, end time.Time) *RunResult {
	started := u.now()
	run := &RunResult{Layer: "campaign"}
	u.console.Start("Updating campaign insights from %s to %s...",
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	var updatedIDs []string
	u.step(run, "ingest campaign insights", func() (StepStatus, string) {
		res, err := u.ingestor.CampaignInsights(ctx, start, end)
		if err != nil {
			return StepFailed, err.Error()
		}
		updatedIDs = res.Frame.DistinctValues("campaign_id")
		return ingestStep(res)
	})

	u.gatedStep(run, "ingest campaign metadata", len(updatedIDs) > 0, "no updated campaign IDs", func() (StepStatus, string) {
		res, err := u.ingestor.CampaignMetadata(ctx, updatedIDs)
		if err != nil {
			return StepFailed, err.Error()
		}
		return ingestStep(res)
	})

	var stagingRes *staging.Result
	u.gatedStep(run, "rebuild campaign staging", len(updatedIDs) > 0, "no updated campaign IDs", func() (StepStatus, string) {
		res, err := u.stager.CampaignInsights(ctx)
		if err != nil {
			return StepFailed, err.Error()
		}
		stagingRes = res
		return stagingStep(res)
	})

	u.gatedStep(run, "materialize campaign performance", materializable(updatedIDs, stagingRes), "staging produced no usable rows", func() (StepStatus, string) {
		res, err := u.marter.CampaignPerformance(ctx)
		if err != nil {
			return StepFailed, err.Error()
		}
		return StepSucceeded, fmt.Sprintf("%d row(s) in %s", res.RowCount, res.Table)
	})

	run.Elapsed = u.now().Sub(started)
	u.finish(run)
	return run
}

// AdInsights runs the ad layer for the inclusive date range. The ad
// layer additionally backfills creative assets for the touched ads and
// materializes the creative performance mart.
func (u *Updater) AdInsights(ctx context.Context, start, end time.Time) *RunResult {
	started := u.now()
	run := &RunResult{Layer: "ad"}
	u.console.Start("Updating ad insights from %s to %s...",
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	var updatedIDs []string
	u.step(run, "ingest ad insights", func() (StepStatus, string) {
		res, err := u.ingestor.AdInsights(ctx, start, end)
		if err != nil {
			return StepFailed, err.Error()
		}
		updatedIDs = res.Frame.DistinctValues("ad_id")
		return ingestStep(res)
	})

	u.gatedStep(run, "ingest ad metadata", len(updatedIDs) > 0, "no updated ad IDs", func() (StepStatus, string) {
		res, err := u.ingestor.AdMetadata(ctx, updatedIDs)
		if err != nil {
			return StepFailed, err.Error()
		}
		return ingestStep(res)
	})

	u.gatedStep(run, "ingest ad creative", len(updatedIDs) > 0, "no updated ad IDs", func() (StepStatus, string) {
		res, err := u.ingestor.AdCreative(ctx, updatedIDs)
		if err != nil {
			return StepFailed, err.Error()
		}
		return ingestStep(res)
	})

	var stagingRes *staging.Result
	u.gatedStep(run, "rebuild ad staging", len(updatedIDs) > 0, "no updated ad IDs", func() (StepStatus, string) {
		res, err := u.stager.AdInsights(ctx)
		if err != nil {
			return StepFailed, err.Error()
		}
		stagingRes = res
		return stagingStep(res)
	})

	u.gatedStep(run, "materialize creative performance", materializable(updatedIDs, stagingRes), "staging produced no usable rows", func() (StepStatus, string) {
		res, err := u.marter.CreativePerformance(ctx)
		if err != nil {
			return StepFailed, err.Error()
		}
		return StepSucceeded, fmt.Sprintf("%d row(s) in %s", res.RowCount, res.Table)
	})

	run.Elapsed = u.now().Sub(started)
	u.finish(run)
	return run
}

// step executes fn and records its outcome.
func (u *Updater) step(run *RunResult, name string, fn func() (StepStatus, string)) {
	u.console.Step("%s...", name)
	started := u.now()
	status, detail := fn()
	u.record(run, StepResult{Name: name, Status: status, Detail: detail, Elapsed: u.now().Sub(started)})
}

// gatedStep records the step as failed without executing when the gate
// is closed. A skipped downstream step is a failure of the run, not a
// neutral outcome: its table was supposed to be refreshed and was not.
func (u *Updater) gatedStep(run *RunResult, name string, gate bool, gateDetail string, fn func() (StepStatus, string)) {
	if !gate {
		u.record(run, StepResult{Name: name, Status: StepFailed, Detail: gateDetail})
		return
	}
	u.step(run, name, fn)
}

func (u *Updater) record(run *RunResult, step StepResult) {
	run.Steps = append(run.Steps, step)
	switch step.Status {
	case StepSucceeded:
		u.console.Success("%s: %s", step.Name, step.Detail)
	case StepPartial:
		u.console.Warning("%s: %s", step.Name, step.Detail)
	default:
		u.console.Error("%s: %s", step.Name, step.Detail)
	}
}

func (u *Updater) finish(run *RunResult) {
	rows := make([]ui.SummaryRow, len(run.Steps))
	for i, s := range run.Steps {
		rows[i] = ui.SummaryRow{Step: s.Name, Status: string(s.Status), Detail: s.Detail, Elapsed: s.Elapsed}
	}
	u.console.Printf("%s", ui.RenderSummary(fmt.Sprintf("%s layer run", run.Layer), rows))
	if run.Failed() {
		u.console.Error("Completed %s layer run with failures in %s.", run.Layer, run.Elapsed.Round(time.Second))
	} else {
		u.console.Finish("Successfully completed %s layer run in %s.", run.Layer, run.Elapsed.Round(time.Second))
	}
}

func ingestStep(res *ingest.Result) (StepStatus, string) {
	detail := fmt.Sprintf("%d row(s) uploaded", res.RowsUploaded)
	if res.DaysSucceeded+res.DaysFailed > 0 {
		detail = fmt.Sprintf("%d row(s) uploaded, %d/%d day(s) succeeded",
			res.RowsUploaded, res.DaysSucceeded, res.DaysSucceeded+res.DaysFailed)
	}
	switch res.Status {
	case ingest.StatusSucceeded:
		return StepSucceeded, detail
	case ingest.StatusPartialFailed:
		return StepPartial, detail
	default:
		return StepFailed, detail
	}
}

func stagingStep(res *staging.Result) (StepStatus, string) {
	detail := fmt.Sprintf("%d row(s) from %d/%d raw table(s)",
		res.RowsUploaded, res.TablesUsed, res.TablesFound)
	switch res.Status {
	case staging.StatusSucceededAll:
		return StepSucceeded, detail
	case staging.StatusFailedPartial:
		return StepPartial, detail
	default:
		return StepFailed, detail
	}
}

// materializable reports whether the mart rebuild should run: the
// staging table must have been rebuilt from at least some raw data.
func materializable(updatedIDs []string, res *staging.Result) bool {
	if len(updatedIDs) == 0 || res == nil {
		return false
	}
	return res.Status == staging.StatusSucceededAll || res.Status == staging.StatusFailedPartial
}
