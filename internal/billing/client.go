// Package billing adapts the cost-management query API to the reconciler's
// meter-cost rows. The API returns a column/row table whose column set varies
// by scope and grouping, so rows are decoded by column name rather than
// position.
package billing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/cloudmeter/volcost/internal/reconcile"
)

const defaultQueryTimeout = 30 * time.Second

// maxQueryPages caps pagination of a single cost query. Daily granularity over
// one billing period grouped by meter stays far below this; anything larger
// means the filter is wrong.
const maxQueryPages = 20

type queryRequest struct {
	Type       string       `json:"type"`
	Timeframe  string       `json:"timeframe"`
	TimePeriod *timePeriod  `json:"timePeriod,omitempty"`
	Dataset    queryDataset `json:"dataset"`
}

type timePeriod struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type queryDataset struct {
	Granularity string                 `json:"granularity"`
	Aggregation map[string]queryMetric `json:"aggregation"`
	Grouping    []queryGrouping        `json:"grouping"`
	Filter      *queryDimensionFilter  `json:"filter,omitempty"`
}

type queryMetric struct {
	Name     string `json:"name"`
	Function string `json:"function"`
}

type queryGrouping struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type queryDimensionFilter struct {
	Dimensions queryDimension `json:"dimensions"`
}

type queryDimension struct {
	Name     string   `json:"name"`
	Operator string   `json:"operator"`
	Values   []string `json:"values"`
}

type queryResponse struct {
	Properties struct {
		NextLink string        `json:"nextLink"`
		Columns  []queryColumn `json:"columns"`
		Rows     [][]any       `json:"rows"`
	} `json:"properties"`
}

type queryColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Client queries actual costs from the cost-management endpoint. It implements
// reconcile.BillingClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a billing query client for the given endpoint.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultQueryTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// QueryActualCosts returns daily actual-cost rows for a resource, grouped by
// meter and subcategory, over [from, to).
func (c *Client) QueryActualCosts(ctx context.Context, scope, resourceID string, from, to time.Time) ([]reconcile.MeterCostEntry, error) {
	body := queryRequest{
		Type:      "ActualCost",
		Timeframe: "Custom",
		TimePeriod: &timePeriod{
			From: from.Format(time.RFC3339),
			To:   to.Format(time.RFC3339),
		},
		Dataset: queryDataset{
			Granularity: "Daily",
			Aggregation: map[string]queryMetric{
				"totalCost": {Name: "Cost", Function: "Sum"},
			},
			Grouping: []queryGrouping{
				{Type: "Dimension", Name: "Meter"},
				{Type: "Dimension", Name: "MeterSubcategory"},
				{Type: "Dimension", Name: "ResourceId"},
			},
			Filter: &queryDimensionFilter{
				Dimensions: queryDimension{
					Name:     "ResourceId",
					Operator: "In",
					Values:   []string{resourceID},
				},
			},
		},
	}

	start := time.Now()
	queryURL := fmt.Sprintf("%s/%s/providers/Microsoft.CostManagement/query?api-version=2023-11-01",
		c.baseURL, strings.Trim(scope, "/"))

	var entries []reconcile.MeterCostEntry
	pages := 0
	for queryURL != "" && pages < maxQueryPages {
		page, err := c.postQuery(ctx, queryURL, body)
		if err != nil {
			return nil, fmt.Errorf("billing query failed on page %d: %w", pages+1, err)
		}
		pageEntries, err := decodeRows(page)
		if err != nil {
			return nil, err
		}
		entries = append(entries, pageEntries...)
		pages++
		queryURL = page.Properties.NextLink
	}

	c.logger.Debug().
		Str("resource_id", resourceID).
		Int("rows", len(entries)).
		Int("pages", pages).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("actual cost rows fetched")
	return entries, nil
}

func (c *Client) postQuery(ctx context.Context, queryURL string, body queryRequest) (*queryResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, queryURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error().Err(err).Msg("failed to close billing response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var page queryResponse
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("failed to parse billing query response: %w", err)
	}
	return &page, nil
}

// decodeRows maps each row to a MeterCostEntry using the column header. An
// unknown column is skipped rather than rejected so a scope that reports extra
// dimensions still decodes.
func decodeRows(page *queryResponse) ([]reconcile.MeterCostEntry, error) {
	index := make(map[string]int, len(page.Properties.Columns))
	for i, col := range page.Properties.Columns {
		index[strings.ToLower(col.Name)] = i
	}

	entries := make([]reconcile.MeterCostEntry, 0, len(page.Properties.Rows))
	for i, row := range page.Properties.Rows {
		var entry reconcile.MeterCostEntry
		entry.Cost = numberAt(row, index, "cost")
		entry.CostUSD = numberAt(row, index, "costusd")
		entry.Quantity = numberAt(row, index, "usagequantity")
		entry.Meter = stringAt(row, index, "meter")
		entry.MeterSubcategory = stringAt(row, index, "metersubcategory")
		entry.ResourceID = stringAt(row, index, "resourceid")
		entry.Currency = stringAt(row, index, "currency")

		date, err := usageDateAt(row, index)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		entry.UsageDate = date
		entries = append(entries, entry)
	}
	return entries, nil
}

func numberAt(row []any, index map[string]int, name string) float64 {
	i, ok := index[name]
	if !ok || i >= len(row) {
		return 0
	}
	v, ok := row[i].(float64)
	if !ok {
		return 0
	}
	return v
}

func stringAt(row []any, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(row) {
		return ""
	}
	v, ok := row[i].(string)
	if !ok {
		return ""
	}
	return v
}

// usageDateAt parses the UsageDate column, which arrives as the number
// 20260802 at daily granularity.
func usageDateAt(row []any, index map[string]int) (time.Time, error) {
	i, ok := index["usagedate"]
	if !ok || i >= len(row) {
		return time.Time{}, nil
	}
	num, ok := row[i].(float64)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected usage date value %v", row[i])
	}
	return time.Parse("20060102", strconv.FormatInt(int64(num), 10))
}
