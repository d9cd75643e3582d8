// Package enrich derives business dimensions from the operational
// naming conventions: the nine-part campaign name, the five-part adset
// name and the physical raw table name. The dimensions land in
// enrich_* columns consumed by the staging contracts.
package enrich

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"admart/internal/frame"
	"admart/internal/naming"
)

// campaignDimensions maps split positions of the campaign name to
// dimension columns. A name with fewer parts is flagged invalid.
var campaignDimensions = []string{
	"enrich_campaign_objective",
	"enrich_campaign_region",
	"enrich_budget_group",
	"enrich_budget_type",
	"enrich_category_group",
	"enrich_campaign_personnel",
	"enrich_program_track",
	"enrich_program_group",
	"enrich_program_type",
}

// adsetDimensions maps split positions of the adset name.
var adsetDimensions = []string{
	"enrich_adset_strategy",
	"enrich_adset_subtype",
	"enrich_adset_location",
	"enrich_adset_audience",
	"enrich_adset_format",
}

// Campaign enriches campaign insight rows in place: account dimensions
// from the raw table identifier, name-split dimensions from
// campaign_name and the reporting month from date_start. Missing name
// parts stay empty; a short name flags invalid_campaign_name.
func Campaign(f *frame.Frame, tableID string) {
	stampAccountDimensions(f, tableID)

	splitNameColumn(f, "campaign_name", campaignDimensions, "invalid_campaign_name", "")
	f.SetColumn("enrich_campaign_personnel", func(r frame.Row) frame.Value {
		return FoldAccents(frame.Stringify(r["enrich_campaign_personnel"]))
	})

	stampMonth(f)
}

// Ad enriches ad insight rows in place: account dimensions, adset and
// campaign name splits and the reporting month. Missing name parts on
// the ad path fall back to "unknown", which older dashboards filter on.
func Ad(f *frame.Frame, tableID string) {
	stampAccountDimensions(f, tableID)

	if f.HasColumn("adset_name") {
		splitNameColumn(f, "adset_name", adsetDimensions, "invalid_adset_name", "unknown")
	}
	if f.HasColumn("campaign_name") {
		splitNameColumn(f, "campaign_name", campaignDimensions, "invalid_campaign_name", "unknown")
		f.SetColumn("enrich_campaign_personnel", func(r frame.Row) frame.Value {
			return FoldAccents(frame.Stringify(r["enrich_campaign_personnel"]))
		})
	}

	stampMonth(f)
}

// stampAccountDimensions parses the physical table name and stamps the
// platform, department and account it encodes. Tables outside the
// naming convention leave the columns unset.
func stampAccountDimensions(f *frame.Frame, tableID string) {
	parts, ok := naming.ParseTableID(tableID)
	if !ok {
		return
	}
	f.SetConstant("enrich_account_platform", parts.Platform)
	f.SetConstant("enrich_account_department", parts.Department)
	f.SetConstant("enrich_account_name", parts.Account)
}

// splitNameColumn splits the source column on underscores and assigns
// one part per dimension column, flagging rows whose name has fewer
// parts than dimensions.
func splitNameColumn(f *frame.Frame, source string, dims []string, invalidCol, fill string) {
	for i, dim := range dims {
		idx := i
		f.SetColumn(dim, func(r frame.Row) frame.Value {
			parts := strings.Split(frame.Stringify(r[source]), "_")
			if idx < len(parts) && parts[idx] != "" {
				return parts[idx]
			}
			return fill
		})
	}
	f.SetColumn(invalidCol, func(r frame.Row) frame.Value {
		return len(strings.Split(frame.Stringify(r[source]), "_")) < len(dims)
	})
}

// stampMonth derives the YYYY-MM reporting month from date_start.
func stampMonth(f *frame.Frame) {
	if !f.HasColumn("date_start") {
		return
	}
	f.SetColumn("month", func(r frame.Row) frame.Value {
		switch t := r["date_start"].(type) {
		case time.Time:
			return t.UTC().Format("2006-01")
		default:
			s := frame.Stringify(t)
			if len(s) >= 7 {
				return s[:7]
			}
			return ""
		}
	})
}

// accentFolder strips combining marks after canonical decomposition.
var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldAccents converts accented personnel names to their plain ASCII
// form so the same person groups under one key regardless of how the
// name was typed. The Vietnamese đ/Đ pair has no combining mark and is
// replaced explicitly.
func FoldAccents(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	folded = strings.ReplaceAll(folded, "đ", "d")
	folded = strings.ReplaceAll(folded, "Đ", "D")
	return folded
}
