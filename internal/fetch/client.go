// Package fetch implements the vendor ads API client. It retrieves
// campaign and ad metadata, ad creative assets and daily performance
// insights, returning frames in the vendor's raw shape. Schema
// enforcement and storage are the callers' concern.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"admart/internal/frame"
	"admart/pkg/errors"
	"admart/pkg/models"
)

const (
	// insightPageSize is the report endpoint's maximum page size.
	insightPageSize = 1000
	// videoPageSize is the video library endpoint's maximum page size.
	videoPageSize = 100
	// requestTimeout bounds a single API request.
	requestTimeout = 60 * time.Second
)

// insightMetrics are the metric fields requested from the report
// endpoint, matching the insight contracts column for column.
var insightMetrics = []string{
	"result",
	"spend",
	"impressions",
	"clicks",
	"engaged_view_15s",
	"purchase",
	"complete_payment",
	"onsite_total_purchase",
	"offline_shopping_events",
	"onsite_shopping",
	"messaging_conversations",
}

var campaignMetadataFields = []string{
	"advertiser_id",
	"campaign_id",
	"campaign_name",
	"operation_status",
	"objective_type",
	"create_time",
}

var adMetadataFields = []string{
	"advertiser_id",
	"ad_id",
	"ad_name",
	"adgroup_id",
	"adgroup_name",
	"campaign_id",
	"campaign_name",
	"operation_status",
	"create_time",
	"ad_format",
	"optimization_event",
	"video_id",
}

// Client talks to the vendor ads API.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewClient creates an API client from config. The access token is
// resolved by the caller (secret store or config) before construction.
func NewClient(cfg models.APIConfig, accessToken string) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// envelope is the vendor's uniform response wrapper. Code zero means
// success; anything else carries a vendor error message.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		List     []json.RawMessage `json:"list"`
		PageInfo struct {
			HasMore bool `json:"has_more"`
		} `json:"page_info"`
	} `json:"data"`
}

// get performs one API request. Structured parameters (lists, filter
// objects) are passed JSON-encoded, which is the vendor's convention.
func (c *Client) get(ctx context.Context, path string, params url.Values) (*envelope, error) {
	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFetchFailed, "failed to build API request").
			WithContext("path", path)
	}
	req.Header.Set("Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFetchFailed, "API request failed").
			WithContext("path", path).
			AsRecoverable()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFetchFailed, "failed to read API response").
			WithContext("path", path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeAPIStatus, "API returned HTTP %d", resp.StatusCode).
			WithContext("path", path).
			AsRecoverable()
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeResponseParsing, "failed to decode API response").
			WithContext("path", path)
	}
	if env.Code != 0 {
		return nil, errors.Newf(errors.ErrCodeAPIStatus, "API error %d: %s", env.Code, env.Message).
			WithContext("path", path)
	}
	return &env, nil
}

func jsonParam(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeRecords(raw []json.RawMessage) ([]frame.Row, error) {
	rows := make([]frame.Row, 0, len(raw))
	for _, m := range raw {
		var r map[string]interface{}
		if err := json.Unmarshal(m, &r); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResponseParsing, "failed to decode API record")
		}
		rows = append(rows, frame.Row(r))
	}
	return rows, nil
}

// AdvertiserName returns the display name of an advertiser account.
// Callers treat a failure as best-effort and proceed without the name.
func (c *Client) AdvertiserName(ctx context.Context, advertiserID string) (string, error) {
	params := url.Values{}
	params.Set("advertiser_ids", jsonParam([]string{advertiserID}))

	env, err := c.get(ctx, "/advertiser/info/", params)
	if err != nil {
		return "", err
	}
	rows, err := decodeRecords(env.Data.List)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	name, _ := rows[0]["name"].(string)
	return name, nil
}

// CampaignMetadata fetches metadata for the given campaign IDs, one
// lookup per ID. Individual misses are tolerated; the advertiser name
// is stamped onto every row. Zero successful lookups yields an
// EmptyUpstream error so the caller can fail the step.
func (c *Client) CampaignMetadata(ctx context.Context, advertiserID string, campaignIDs []string) (*frame.Frame, error) {
	if len(campaignIDs) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "no campaign IDs to fetch metadata for")
	}

	advertiserName, err := c.AdvertiserName(ctx, advertiserID)
	if err != nil {
		advertiserName = ""
	}

	out := frame.New()
	for _, id := range campaignIDs {
		params := url.Values{}
		params.Set("advertiser_id", advertiserID)
		params.Set("filtering", jsonParam(map[string][]string{"campaign_ids": {id}}))
		params.Set("fields", jsonParam(campaignMetadataFields))

		env, err := c.get(ctx, "/campaign/get/", params)
		if err != nil {
			continue
		}
		rows, err := decodeRecords(env.Data.List)
		if err != nil || len(rows) == 0 {
			continue
		}
		rows[0]["advertiser_name"] = advertiserName
		out.Append(rows[0])
	}

	if out.Empty() {
		return nil, errors.New(errors.ErrCodeEmptyUpstream, "no campaign metadata returned for any requested ID").
			WithContext("requested", len(campaignIDs))
	}
	return out, nil
}

// AdMetadata fetches metadata for the given ad IDs, one lookup per ID,
// tolerating individual misses.
func (c *Client) AdMetadata(ctx context.Context, advertiserID string, adIDs []string) (*frame.Frame, error) {
	if len(adIDs) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "no ad IDs to fetch metadata for")
	}

	out := frame.New()
	for _, id := range adIDs {
		params := url.Values{}
		params.Set("advertiser_id", advertiserID)
		params.Set("filtering", jsonParam(map[string][]string{"ad_ids": {id}}))
		params.Set("fields", jsonParam(adMetadataFields))

		env, err := c.get(ctx, "/ad/get/", params)
		if err != nil {
			continue
		}
		rows, err := decodeRecords(env.Data.List)
		if err != nil || len(rows) == 0 {
			continue
		}
		out.Append(rows[0])
	}

	if out.Empty() {
		return nil, errors.New(errors.ErrCodeEmptyUpstream, "no ad metadata returned for any requested ID").
			WithContext("requested", len(adIDs))
	}
	return out, nil
}

// AdCreative fetches the video creative assets behind the given ads.
// It lists the advertiser's ads to map ad to video, then pages through
// the video library and joins cover and preview URLs by video ID. Ads
// without a matching video keep their row with empty asset columns.
func (c *Client) AdCreative(ctx context.Context, advertiserID string, adIDs []string) (*frame.Frame, error) {
	if len(adIDs) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "no ad IDs to fetch creative for")
	}
	wanted := make(map[string]bool, len(adIDs))
	for _, id := range adIDs {
		wanted[id] = true
	}

	params := url.Values{}
	params.Set("advertiser_id", advertiserID)
	params.Set("page_size", strconv.Itoa(insightPageSize))

	env, err := c.get(ctx, "/ad/get/", params)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFetchFailed, "failed to list ads for creative lookup")
	}
	adRows, err := decodeRecords(env.Data.List)
	if err != nil {
		return nil, err
	}

	out := frame.New()
	for _, r := range adRows {
		adID := frame.Stringify(r["ad_id"])
		if !wanted[adID] {
			continue
		}
		out.Append(frame.Row{
			"ad_id":         adID,
			"advertiser_id": r["advertiser_id"],
			"video_id":      r["video_id"],
			"create_time":   r["create_time"],
		})
	}
	if out.Empty() {
		return nil, errors.New(errors.ErrCodeEmptyUpstream, "no creative records matched the requested ads").
			WithContext("requested", len(adIDs))
	}

	videos, err := c.videoLibrary(ctx, advertiserID)
	if err != nil {
		return nil, err
	}

	out.SetColumn("video_cover_url", func(r frame.Row) frame.Value {
		if v, ok := videos[frame.Stringify(r["video_id"])]; ok {
			return v["video_cover_url"]
		}
		return nil
	})
	out.SetColumn("preview_url", func(r frame.Row) frame.Value {
		if v, ok := videos[frame.Stringify(r["video_id"])]; ok {
			return v["preview_url"]
		}
		return nil
	})
	return out, nil
}

// videoLibrary pages through the advertiser's ad video library and
// indexes the records by video ID.
func (c *Client) videoLibrary(ctx context.Context, advertiserID string) (map[string]frame.Row, error) {
	videos := make(map[string]frame.Row)
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("advertiser_id", advertiserID)
		params.Set("page", strconv.Itoa(page))
		params.Set("page_size", strconv.Itoa(videoPageSize))

		env, err := c.get(ctx, "/file/video/ad/search/", params)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeFetchFailed, "failed to page video library").
				WithContext("page", page)
		}
		rows, err := decodeRecords(env.Data.List)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		for _, r := range rows {
			if id := frame.Stringify(r["video_id"]); id != "" {
				videos[id] = r
			}
		}
		if !env.Data.PageInfo.HasMore {
			break
		}
	}
	return videos, nil
}

// CampaignInsights fetches daily campaign performance for the inclusive
// date range.
func (c *Client) CampaignInsights(ctx context.Context, advertiserID string, start, end time.Time) (*frame.Frame, error) {
	return c.insights(ctx, advertiserID, "AUCTION_CAMPAIGN", "campaign_id", start, end)
}

// AdInsights fetches daily ad performance for the inclusive date range.
func (c *Client) AdInsights(ctx context.Context, advertiserID string, start, end time.Time) (*frame.Frame, error) {
	return c.insights(ctx, advertiserID, "AUCTION_AD", "ad_id", start, end)
}

// insights pulls the integrated report for one data level, paging until
// a short page, then flattens each record's dimensions and metrics into
// a single row stamped with the advertiser ID. The whole pull is
// attempted twice with a one second pause, matching the report
// endpoint's occasional first-call flakiness.
func (c *Client) insights(ctx context.Context, advertiserID, dataLevel, idDimension string, start, end time.Time) (*frame.Frame, error) {
	var out *frame.Frame

	err := errors.Retry(ctx, errors.FetchRetryConfig(), func(ctx context.Context) error {
		var records []frame.Row
		for page := 1; ; page++ {
			params := url.Values{}
			params.Set("advertiser_id", advertiserID)
			params.Set("report_type", "BASIC")
			params.Set("data_level", dataLevel)
			params.Set("dimensions", jsonParam([]string{idDimension, "stat_time_day"}))
			params.Set("metrics", jsonParam(insightMetrics))
			params.Set("start_date", start.Format("2006-01-02"))
			params.Set("end_date", end.Format("2006-01-02"))
			params.Set("page_size", strconv.Itoa(insightPageSize))
			params.Set("page", strconv.Itoa(page))

			env, err := c.get(ctx, "/report/integrated/get/", params)
			if err != nil {
				return err
			}

			for _, raw := range env.Data.List {
				var rec struct {
					Dimensions map[string]interface{} `json:"dimensions"`
					Metrics    map[string]interface{} `json:"metrics"`
				}
				if err := json.Unmarshal(raw, &rec); err != nil {
					return errors.Wrap(err, errors.ErrCodeResponseParsing, "failed to decode insight record")
				}
				row := make(frame.Row, len(rec.Dimensions)+len(rec.Metrics)+1)
				for k, v := range rec.Dimensions {
					row[k] = v
				}
				for k, v := range rec.Metrics {
					row[k] = v
				}
				row["advertiser_id"] = advertiserID
				records = append(records, row)
			}

			if len(env.Data.List) < insightPageSize {
				break
			}
		}
		out = frame.FromRows(records)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFetchFailed,
			fmt.Sprintf("failed to fetch %s insights after all attempts", dataLevel)).
			WithContext("start", start.Format("2006-01-02")).
			WithContext("end", end.Format("2006-01-02"))
	}
	return out, nil
}
