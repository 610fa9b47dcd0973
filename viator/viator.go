// Package viator is a thin client for the Viator partner API, covering the
// destination taxonomy and product search used by the travel assistant.
package viator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/voyahq/voya-agent/models"
)

const (
	defaultBaseURL = "https://api.viator.com/partner"
	searchWindow   = 30 * 24 * time.Hour
	highestPrice   = 10000
)

// APIError carries the upstream status so callers can distinguish rate
// limits and missing destinations from transport failures.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("viator api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the Viator partner API. The destination taxonomy is
// fetched once and cached for the lifetime of the client.
type Client struct {
	http        *resty.Client
	affiliateID string
	logger      *slog.Logger

	mu           sync.Mutex
	destinations []Destination
}

// NewClient builds a client. An empty baseURL selects the production API.
func NewClient(apiKey, baseURL, affiliateID string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("exp-api-key", apiKey).
		SetHeader("Accept", "application/json;version=2.0").
		SetHeader("Accept-Language", "en-US").
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() == http.StatusTooManyRequests
		})
	return &Client{
		http:        httpClient,
		affiliateID: affiliateID,
		logger:      slog.Default(),
	}
}

// Destination is one entry of the Viator destination taxonomy.
type Destination struct {
	DestinationID int64  `json:"destinationId"`
	Name          string `json:"name"`
	Type          string `json:"type"`
}

type destinationsResponse struct {
	Destinations []Destination `json:"destinations"`
}

// Destinations returns the cached destination taxonomy, fetching it on first
// use.
func (c *Client) Destinations(ctx context.Context) ([]Destination, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destinations != nil {
		return c.destinations, nil
	}

	var out destinationsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/destinations")
	if err != nil {
		return nil, fmt.Errorf("fetch destinations: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: resp.String()}
	}
	c.destinations = out.Destinations
	return c.destinations, nil
}

// resolveDestination maps a free-form destination name to a Viator
// destination id, preferring exact name matches over substring ones.
func (c *Client) resolveDestination(ctx context.Context, name string) (int64, error) {
	destinations, err := c.Destinations(ctx)
	if err != nil {
		return 0, err
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	var partial int64
	for _, d := range destinations {
		candidate := strings.ToLower(d.Name)
		if candidate == needle {
			return d.DestinationID, nil
		}
		if partial == 0 && strings.Contains(candidate, needle) {
			partial = d.DestinationID
		}
	}
	if partial != 0 {
		return partial, nil
	}
	return 0, &APIError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("unknown destination %q", name)}
}

type searchRequest struct {
	Filtering      searchFiltering `json:"filtering"`
	ProductSorting productSorting  `json:"productSorting"`
	SearchTypes    []searchType    `json:"searchTypes"`
	Currency       string          `json:"currency"`
}

type searchFiltering struct {
	Destination string    `json:"destination"`
	StartDate   string    `json:"startDate"`
	EndDate     string    `json:"endDate"`
	Highest     int       `json:"highestPrice"`
	Duration    rangeInts `json:"durationInMinutes"`
	Rating      rangeInts `json:"rating"`
}

type rangeInts struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type productSorting struct {
	Sort  string `json:"sort"`
	Order string `json:"order"`
}

type searchType struct {
	SearchType string     `json:"searchType"`
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

type searchResponse struct {
	Products struct {
		TotalCount int       `json:"totalCount"`
		Results    []product `json:"results"`
	} `json:"products"`
}

type product struct {
	ProductCode string `json:"productCode"`
	Title       string `json:"title"`
	Description string `json:"description"`
	WebURL      string `json:"webUrl"`
	Pricing     struct {
		Summary struct {
			FromPrice float64 `json:"fromPrice"`
		} `json:"summary"`
	} `json:"pricing"`
	Reviews struct {
		CombinedAverageRating float64 `json:"combinedAverageRating"`
		TotalReviews          int     `json:"totalReviews"`
	} `json:"reviews"`
	Duration struct {
		DurationText string `json:"durationText"`
	} `json:"duration"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// SearchTours searches bookable products in a destination within a 30-day
// window starting at startDate (today when empty or in the past).
func (c *Client) SearchTours(ctx context.Context, query, destination, startDate string, limit int) ([]models.Tour, error) {
	if limit <= 0 {
		limit = 5
	}

	start := time.Now()
	if startDate != "" {
		parsed, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
		}
		if parsed.After(start) {
			start = parsed
		}
	}
	end := start.Add(searchWindow)

	destID, err := c.resolveDestination(ctx, destination)
	if err != nil {
		return nil, err
	}

	payload := searchRequest{
		Filtering: searchFiltering{
			Destination: strconv.FormatInt(destID, 10),
			StartDate:   start.Format("2006-01-02"),
			EndDate:     end.Format("2006-01-02"),
			Highest:     highestPrice,
			Duration:    rangeInts{From: 0, To: 1000},
			Rating:      rangeInts{From: 0, To: 5},
		},
		ProductSorting: productSorting{Sort: "PRICE", Order: "ASCENDING"},
		SearchTypes: []searchType{{
			SearchType: "PRODUCTS",
			Pagination: pagination{Start: 1, Count: limit},
		}},
		Currency: "USD",
	}

	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&out).
		Post("/products/search")
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: resp.String()}
	}

	c.logger.Info("Viator search completed",
		"destination", destination, "query", query, "results", len(out.Products.Results))

	tours := make([]models.Tour, 0, len(out.Products.Results))
	for _, p := range out.Products.Results {
		tours = append(tours, c.toTour(p, destination))
	}
	return tours, nil
}

func (c *Client) toTour(p product, destination string) models.Tour {
	webURL := p.WebURL
	if webURL == "" && p.ProductCode != "" {
		webURL = "https://www.viator.com/tours/d" + p.ProductCode
	}
	thumbnail := ""
	if len(p.Images) > 0 {
		thumbnail = p.Images[0].URL
	}
	return models.Tour{
		Code:         p.ProductCode,
		Title:        p.Title,
		Price:        p.Pricing.Summary.FromPrice,
		Rating:       p.Reviews.CombinedAverageRating,
		ReviewCount:  p.Reviews.TotalReviews,
		Duration:     p.Duration.DurationText,
		Destination:  destination,
		ThumbnailURL: thumbnail,
		ViatorURL:    c.withAffiliateTracking(webURL),
		Description:  p.Description,
	}
}

func (c *Client) withAffiliateTracking(url string) string {
	if c.affiliateID == "" || url == "" {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "pid=" + c.affiliateID
}
