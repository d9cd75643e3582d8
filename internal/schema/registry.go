package schema

// Contract names follow "<layer>_<entity>". The fetch and ingest layers
// carry the vendor's raw shape; the staging layer adds joined metadata,
// derived business dimensions and standardized time columns. The layers
// intentionally differ; callers must pass the name for their layer.
const (
	FetchCampaignMetadata = "fetch_campaign_metadata"
	FetchAdMetadata       = "fetch_ad_metadata"
	FetchAdCreative       = "fetch_ad_creative"
	FetchCampaignInsights = "fetch_campaign_insights"
	FetchAdInsights       = "fetch_ad_insights"

	IngestCampaignMetadata = "ingest_campaign_metadata"
	IngestAdMetadata       = "ingest_ad_metadata"
	IngestAdCreative       = "ingest_ad_creative"
	IngestCampaignInsights = "ingest_campaign_insights"
	IngestAdInsights       = "ingest_ad_insights"

	StagingCampaignInsights = "staging_campaign_insights"
	StagingAdInsights       = "staging_ad_insights"
)

var insightMetrics = []Column{
	{"result", Text},
	{"spend", Decimal},
	{"impressions", Integer},
	{"clicks", Integer},
	{"engaged_view_15s", Integer},
	{"purchase", Integer},
	{"complete_payment", Integer},
	{"onsite_total_purchase", Integer},
	{"offline_shopping_events", Integer},
	{"onsite_shopping", Integer},
	{"messaging_conversations", Integer},
}

var campaignMetadataColumns = []Column{
	{"advertiser_id", Text},
	{"advertiser_name", Text},
	{"campaign_id", Text},
	{"campaign_name", Text},
	{"operation_status", Text},
	{"objective_type", Text},
	{"create_time", TimestampUTC},
}

var adMetadataColumns = []Column{
	{"advertiser_id", Text},
	{"ad_id", Text},
	{"ad_name", Text},
	{"adgroup_id", Text},
	{"adgroup_name", Text},
	{"campaign_id", Text},
	{"campaign_name", Text},
	{"operation_status", Text},
	{"create_time", TimestampUTC},
	{"ad_format", Text},
	{"optimization_event", Text},
	{"video_id", Text},
}

var adCreativeColumns = []Column{
	{"advertiser_id", Text},
	{"video_id", Text},
	{"video_cover_url", Text},
	{"preview_url", Text},
	{"create_time", TimestampUTC},
}

// Enrichment dimensions derived from the nine-part campaign naming
// convention, position N of the split name feeding dimension N.
var campaignNameDimensions = []Column{
	{"enrich_campaign_objective", Text},
	{"enrich_campaign_region", Text},
	{"enrich_budget_group", Text},
	{"enrich_budget_type", Text},
	{"enrich_category_group", Text},
	{"enrich_campaign_personnel", Text},
	{"enrich_program_track", Text},
	{"enrich_program_group", Text},
	{"enrich_program_type", Text},
}

var adsetNameDimensions = []Column{
	{"enrich_adset_strategy", Text},
	{"enrich_adset_subtype", Text},
	{"enrich_adset_location", Text},
	{"enrich_adset_audience", Text},
	{"enrich_adset_format", Text},
}

var accountDimensions = []Column{
	{"enrich_account_platform", Text},
	{"enrich_account_department", Text},
	{"enrich_account_name", Text},
}

var timeColumns = []Column{
	{"date", TimestampUTC},
	{"year", Text},
	{"month", Text},
	{"last_updated_at", TimestampUTC},
}

var registry = buildRegistry()

func buildRegistry() map[string]Contract {
	campaignInsights := concat(
		[]Column{{"advertiser_id", Text}, {"campaign_id", Text}, {"stat_time_day", Text}},
		insightMetrics,
	)
	adInsights := concat(
		[]Column{{"advertiser_id", Text}, {"ad_id", Text}, {"stat_time_day", Text}},
		insightMetrics,
	)

	stagingCampaign := concat(
		[]Column{
			{"account_id", Text},
			{"account_name", Text},
			{"campaign_id", Text},
			{"campaign_name", Text},
			{"delivery_status", Text},
			{"result_type", Text},
			{"date_start", Text},
		},
		insightMetrics,
		campaignNameDimensions,
		[]Column{{"invalid_campaign_name", Boolean}},
		timeColumns,
		accountDimensions,
	)

	stagingAd := concat(
		[]Column{
			{"account_id", Text},
			{"ad_id", Text},
			{"ad_name", Text},
			{"adset_id", Text},
			{"adset_name", Text},
			{"campaign_id", Text},
			{"campaign_name", Text},
			{"date_start", Text},
			{"delivery_status", Text},
			{"ad_format", Text},
			{"video_id", Text},
			{"video_cover_url", Text},
			{"preview_url", Text},
			{"optimization_event", Text},
		},
		insightMetrics,
		campaignNameDimensions,
		[]Column{{"invalid_campaign_name", Boolean}},
		adsetNameDimensions,
		[]Column{{"invalid_adset_name", Boolean}},
		accountDimensions,
		timeColumns,
	)

	reg := map[string]Contract{}
	add := func(name string, cols []Column) {
		reg[name] = Contract{Name: name, Columns: cols}
	}
	add(FetchCampaignMetadata, campaignMetadataColumns)
	add(FetchAdMetadata, adMetadataColumns)
	add(FetchAdCreative, adCreativeColumns)
	add(FetchCampaignInsights, campaignInsights)
	add(FetchAdInsights, adInsights)

	// The ingest layer re-enforces the fetch shape before any warehouse
	// write so a misbehaving fetcher cannot leak extra columns. Insight
	// rows additionally carry the load watermark.
	add(IngestCampaignMetadata, campaignMetadataColumns)
	add(IngestAdMetadata, adMetadataColumns)
	add(IngestAdCreative, adCreativeColumns)
	add(IngestCampaignInsights, concat(campaignInsights, []Column{{"last_updated_at", TimestampUTC}}))
	add(IngestAdInsights, concat(adInsights, []Column{{"last_updated_at", TimestampUTC}}))

	add(StagingCampaignInsights, stagingCampaign)
	add(StagingAdInsights, stagingAd)
	return reg
}

func concat(groups ...[]Column) []Column {
	var out []Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
