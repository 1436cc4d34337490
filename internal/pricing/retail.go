package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// maxRetailRecords caps how many price items a single query will accumulate
// across pages. The upstream list is paginated and effectively unbounded; a
// filter that matches more than this is almost certainly too broad.
const maxRetailRecords = 1000

const defaultRetailTimeout = 15 * time.Second

// RetailQuery filters the upstream retail price list.
type RetailQuery struct {
	ServiceFamily string
	ProductName   string
	SkuName       string
	Region        string
}

// RetailItem is one price record as returned by the upstream list.
type RetailItem struct {
	MeterName     string  `json:"meterName"`
	SkuName       string  `json:"skuName"`
	ProductName   string  `json:"productName"`
	RetailPrice   float64 `json:"retailPrice"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
	CurrencyCode  string  `json:"currencyCode"`
	ArmRegionName string  `json:"armRegionName"`
	Type          string  `json:"type"`
}

type retailPage struct {
	Items        []RetailItem `json:"Items"`
	NextPageLink string       `json:"NextPageLink"`
	Count        int          `json:"Count"`
}

// PriceLister fetches retail price records for a query. Implemented by
// RetailClient; tests substitute fakes.
type PriceLister interface {
	Fetch(ctx context.Context, q RetailQuery) ([]RetailItem, error)
}

// RetailClient queries the upstream retail price list over HTTP, following
// pagination links until the result set is exhausted or the safety cap hits.
type RetailClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewRetailClient creates a retail price list client for the given endpoint.
func NewRetailClient(baseURL string, logger zerolog.Logger) *RetailClient {
	return &RetailClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultRetailTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// Fetch returns all price items matching the query, across pages.
func (c *RetailClient) Fetch(ctx context.Context, q RetailQuery) ([]RetailItem, error) {
	start := time.Now()
	next := c.baseURL + "?$filter=" + url.QueryEscape(buildFilter(q))

	var items []RetailItem
	pages := 0
	for next != "" {
		page, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("retail price query failed on page %d: %w", pages+1, err)
		}
		items = append(items, page.Items...)
		pages++

		if len(items) >= maxRetailRecords {
			c.logger.Warn().
				Str("region", q.Region).
				Int("records", len(items)).
				Msg("retail price query hit record cap; truncating")
			items = items[:maxRetailRecords]
			break
		}
		next = page.NextPageLink
	}

	c.logger.Debug().
		Str("region", q.Region).
		Int("records", len(items)).
		Int("pages", pages).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("retail price list fetched")
	return items, nil
}

func (c *RetailClient) fetchPage(ctx context.Context, pageURL string) (*retailPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error().Err(err).Msg("failed to close retail response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var page retailPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse retail page: %w", err)
	}
	return &page, nil
}

// buildFilter renders the OData filter expression for a query. Single quotes
// in values are doubled per the OData literal escaping rules.
func buildFilter(q RetailQuery) string {
	var clauses []string
	add := func(field, value string) {
		if value != "" {
			clauses = append(clauses, fmt.Sprintf("%s eq '%s'", field, strings.ReplaceAll(value, "'", "''")))
		}
	}
	add("serviceFamily", q.ServiceFamily)
	add("productName", q.ProductName)
	add("skuName", q.SkuName)
	add("armRegionName", q.Region)
	return strings.Join(clauses, " and ")
}
