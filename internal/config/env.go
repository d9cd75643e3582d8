package config

import (
	"os"
	"strings"
	"time"

	"admart/internal/naming"
	"admart/pkg/errors"
	"admart/pkg/models"
)

// Layer selects which insight pipeline a run executes.
type Layer string

const (
	LayerCampaign Layer = "campaign"
	LayerAd       Layer = "ad"
)

// Mode selects the date window a run covers, relative to today.
type Mode string

const (
	ModeToday     Mode = "today"
	ModeLast3Days Mode = "last3days"
	ModeLast7Days Mode = "last7days"
	ModeThisMonth Mode = "thismonth"
	ModeLastMonth Mode = "lastmonth"
)

// RunParams is the per-run parameter set taken from the environment at
// process start. Components receive it by parameter; nothing reads the
// environment after this.
type RunParams struct {
	Company    string
	Project    string
	Platform   string
	Department string
	Account    string
	Layer      Layer
	Mode       Mode
}

// requiredEnv maps environment variable names to RunParams field setters.
var requiredEnv = []string{
	"COMPANY", "PROJECT", "PLATFORM", "DEPARTMENT", "ACCOUNT", "LAYER", "MODE",
}

// FromEnv reads and validates the run parameters. Every variable is
// required; a missing or invalid one fails the run before any work
// starts.
func FromEnv() (RunParams, error) {
	values := make(map[string]string, len(requiredEnv))
	var missing []string
	for _, name := range requiredEnv {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			missing = append(missing, name)
		}
		values[name] = v
	}
	if len(missing) > 0 {
		return RunParams{}, errors.New(errors.ErrCodeConfigNotFound,
			"missing required environment variables").
			WithContext("missing", strings.Join(missing, ", "))
	}

	p := RunParams{
		Company:    values["COMPANY"],
		Project:    values["PROJECT"],
		Platform:   values["PLATFORM"],
		Department: values["DEPARTMENT"],
		Account:    values["ACCOUNT"],
		Layer:      Layer(values["LAYER"]),
		Mode:       Mode(values["MODE"]),
	}

	switch p.Layer {
	case LayerCampaign, LayerAd:
	default:
		return RunParams{}, errors.Newf(errors.ErrCodeConfigInvalid,
			"invalid LAYER %q, use one of 'campaign' and 'ad'", p.Layer)
	}

	switch p.Mode {
	case ModeToday, ModeLast3Days, ModeLast7Days, ModeThisMonth, ModeLastMonth:
	default:
		return RunParams{}, errors.Newf(errors.ErrCodeConfigInvalid,
			"invalid MODE %q, use one of 'today', 'last3days', 'last7days', 'thismonth' and 'lastmonth'", p.Mode)
	}

	return p, nil
}

// DateRange resolves the mode to an inclusive [start, end] day window.
// Both bounds are midnight-truncated in the given reference time's
// location.
func (m Mode) DateRange(now time.Time) (start, end time.Time, err error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch m {
	case ModeToday:
		return today, today, nil
	case ModeLast3Days:
		return today.AddDate(0, 0, -3), today, nil
	case ModeLast7Days:
		return today.AddDate(0, 0, -7), today, nil
	case ModeThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return first, today, nil
	case ModeLastMonth:
		firstThisMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		lastDayLastMonth := firstThisMonth.AddDate(0, 0, -1)
		firstDayLastMonth := time.Date(lastDayLastMonth.Year(), lastDayLastMonth.Month(), 1, 0, 0, 0, 0, today.Location())
		return firstDayLastMonth, lastDayLastMonth, nil
	default:
		return time.Time{}, time.Time{}, errors.Newf(errors.ErrCodeConfigInvalid,
			"invalid mode %q", m)
	}
}

// Target converts the run parameters into the naming target shared by
// every warehouse-facing component.
func (p RunParams) Target() naming.Target {
	return naming.Target{
		Company:    p.Company,
		Project:    p.Project,
		Platform:   p.Platform,
		Department: p.Department,
		Account:    p.Account,
	}
}

// ApplyTo copies the run identity into a loaded config so downstream
// components see one coherent parameter set.
func (p RunParams) ApplyTo(cfg *models.Config) {
	cfg.Company = p.Company
	cfg.Project = p.Project
	cfg.Platform = p.Platform
	cfg.Department = p.Department
	cfg.Account = p.Account
}
