// Package naming produces the deterministic warehouse object names shared
// by every layer. The formats are load-bearing: existing deployments have
// tables under these exact names, so they must be reproduced bit-exact.
package naming

import (
	"fmt"
	"regexp"
	"time"
)

// Entity identifiers used in table names.
const (
	EntityCampaign         = "campaign"
	EntityAd               = "ad"
	EntityCreative         = "creative"
	EntityCampaignMetadata = "campaign_metadata"
	EntityAdMetadata       = "ad_metadata"
	EntityAdCreative       = "ad_creative"
)

// Target identifies one (company, project, platform, department, account)
// destination for pipeline output.
type Target struct {
	Company    string
	Project    string
	Platform   string
	Department string
	Account    string
}

// RawDataset returns the dataset holding raw-layer tables.
func (t Target) RawDataset() string {
	return fmt.Sprintf("%s_dataset_%s_api_raw", t.Company, t.Platform)
}

// StagingDataset returns the dataset holding staging-layer tables.
func (t Target) StagingDataset() string {
	return fmt.Sprintf("%s_dataset_%s_api_staging", t.Company, t.Platform)
}

// MartDataset returns the dataset holding mart-layer tables.
func (t Target) MartDataset() string {
	return fmt.Sprintf("%s_dataset_%s_api_mart", t.Company, t.Platform)
}

// RawTable returns the unpartitioned raw table name for an entity, used
// by the metadata and creative tables.
func (t Target) RawTable(entity string) string {
	return fmt.Sprintf("%s_table_%s_%s_%s_%s", t.Company, t.Platform, t.Department, t.Account, entity)
}

// MonthlyRawTable returns the monthly raw partition table name for an
// entity, suffixed _m<MM><YYYY>.
func (t Target) MonthlyRawTable(entity string, month time.Time) string {
	return fmt.Sprintf("%s_m%02d%d", t.RawTable(entity), int(month.Month()), month.Year())
}

// StagingTable returns the staging table name for an entity.
func (t Target) StagingTable(entity string) string {
	return fmt.Sprintf("%s_table_%s_all_all_%s_insights", t.Company, t.Platform, entity)
}

// MartTable returns the mart table name for an entity.
func (t Target) MartTable(entity string) string {
	return fmt.Sprintf("%s_table_%s_all_all_%s_performance", t.Company, t.Platform, entity)
}

// Qualified returns the fully qualified project.dataset.table identifier.
func (t Target) Qualified(dataset, table string) string {
	return fmt.Sprintf("%s.%s.%s", t.Project, dataset, table)
}

// MonthlyPattern returns the regular expression matching every monthly
// raw table of an entity for this target, as used by catalog scans.
func (t Target) MonthlyPattern(entity string) string {
	return fmt.Sprintf(`^%s_table_%s_%s_%s_%s_m[0-1][0-9][0-9]{4}$`,
		t.Company, t.Platform, t.Department, t.Account, entity)
}

// TableParts are the dimensions recoverable from a physical table name.
type TableParts struct {
	Company    string
	Platform   string
	Department string
	Account    string
}

var tableIDPattern = regexp.MustCompile(
	`(?:^|\.)(\w+?)_table_(\w+?)_(\w+?)_(\w+?)_(?:campaign|ad)(?:_\w+)?$`)

// ParseTableID extracts the company/platform/department/account parts
// from a physical table identifier, qualified or bare. The second return
// is false when the identifier does not follow the naming convention.
func ParseTableID(tableID string) (TableParts, bool) {
	m := tableIDPattern.FindStringSubmatch(tableID)
	if m == nil {
		return TableParts{}, false
	}
	return TableParts{
		Company:    m[1],
		Platform:   m[2],
		Department: m[3],
		Account:    m[4],
	}, true
}
