package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"admart/internal/config"
	"admart/internal/fetch"
	"admart/internal/ingest"
	"admart/internal/mart"
	"admart/internal/secrets"
	"admart/internal/staging"
	"admart/internal/update"
	"admart/internal/warehouse"
	"admart/pkg/errors"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run the pipeline for the layer and date window set in the environment",
	Long: `Run one pipeline pass for the target described by the COMPANY, PROJECT,
PLATFORM, DEPARTMENT, ACCOUNT, LAYER and MODE environment variables.

LAYER selects the campaign or ad pipeline; MODE selects the date window
(today, last3days, last7days, thismonth, lastmonth). Credentials come
from the OS keychain or same-named environment variables.`,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	params, err := config.FromEnv()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	params.ApplyTo(cfg)

	start, end, err := params.Mode.DateRange(time.Now())
	if err != nil {
		return err
	}

	store := secrets.NewStore()
	accessToken := cfg.API.AccessToken
	if accessToken == "" {
		accessToken, err = store.Fetch(secrets.AccessTokenName(params.Company, params.Platform))
		if err != nil {
			return err
		}
	}
	advertiserID, err := store.Fetch(secrets.AccountIDName(
		params.Company, params.Department, params.Platform, params.Account))
	if err != nil {
		return err
	}

	service := warehouse.NewService(cfg.Warehouse)
	if err := service.Connect(ctx); err != nil {
		return err
	}
	defer service.Close()

	target := params.Target()
	client := fetch.NewClient(cfg.API, accessToken)
	updater := update.New(
		ingest.New(service, client, target, advertiserID, console),
		staging.New(service, target),
		mart.New(service, target),
		console,
	)

	return executeRun(ctx, updater, params.Layer, start, end)
}

// layerRunner is the slice of the updater the command drives.
type layerRunner interface {
	CampaignInsights(ctx context.Context, start, end time.Time) *update.RunResult
	AdInsights(ctx context.Context, start, end time.Time) *update.RunResult
}

// executeRun runs the selected layer to completion. Per-step failures
// surface in the run summary and leave the exit code at zero; only
// setup errors fail the command.
func executeRun(ctx context.Context, runner layerRunner, layer config.Layer, start, end time.Time) error {
	switch layer {
	case config.LayerCampaign:
		runner.CampaignInsights(ctx, start, end)
	case config.LayerAd:
		runner.AdInsights(ctx, start, end)
	default:
		return errors.Newf(errors.ErrCodeConfigInvalid, "unknown layer %q", layer)
	}
	return nil
}
