// Package rezdy is the client for the upstream booking platform. It supplies
// the fetch functions the cache manager and the pickup resolution chain are
// given; nothing in here caches or retries.
package rezdy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter <-chan time.Time
}

// NewClient reads REZDY_BASE_URL and REZDY_RATE_LIMIT_PER_MIN from env. The
// API key is passed in because its absence is a per-request-path failure, not
// a startup failure.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("rezdy api key is empty")
	}
	rateLimitPerMin := int64(100)
	if v := strings.TrimSpace(os.Getenv("REZDY_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: time.Tick(interval),
	}, nil
}

type requestStatus struct {
	Success bool `json:"success"`
	Error   *struct {
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	} `json:"error"`
}

type envelope struct {
	RequestStatus requestStatus         `json:"requestStatus"`
	Categories    []Category            `json:"categories"`
	Products      []Product             `json:"products"`
	Product       *Product              `json:"product"`
	Sessions      []AvailabilitySession `json:"sessions"`
	Pickups       []PickupLocation      `json:"pickupLocations"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (envelope, error) {
	select {
	case <-c.limiter:
	case <-ctx.Done():
		return envelope{}, ctx.Err()
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return envelope{}, fmt.Errorf("rezdy api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed envelope
	if err := json.Unmarshal(body, &parsed); err != nil {
		return envelope{}, err
	}
	if !parsed.RequestStatus.Success {
		msg := "request not successful"
		if parsed.RequestStatus.Error != nil {
			msg = parsed.RequestStatus.Error.ErrorMessage
		}
		return envelope{}, fmt.Errorf("rezdy api: %s", msg)
	}
	return parsed, nil
}

func (c *Client) GetCategories(ctx context.Context) ([]Category, error) {
	parsed, err := c.get(ctx, "/categories", nil)
	if err != nil {
		return nil, err
	}
	return parsed.Categories, nil
}

func (c *Client) GetCategoryProducts(ctx context.Context, categoryID int) ([]Product, error) {
	parsed, err := c.get(ctx, "/categories/"+strconv.Itoa(categoryID)+"/products", nil)
	if err != nil {
		return nil, err
	}
	return parsed.Products, nil
}

func (c *Client) SearchProducts(ctx context.Context, limit int) ([]Product, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	parsed, err := c.get(ctx, "/products", params)
	if err != nil {
		return nil, err
	}
	return parsed.Products, nil
}

func (c *Client) GetProduct(ctx context.Context, productCode string) (*Product, error) {
	parsed, err := c.get(ctx, "/products/"+url.PathEscape(productCode), nil)
	if err != nil {
		return nil, err
	}
	if parsed.Product != nil {
		return parsed.Product, nil
	}
	// Some deployments return single products inside the list field.
	if len(parsed.Products) > 0 {
		return &parsed.Products[0], nil
	}
	return nil, fmt.Errorf("rezdy api: product %s not in response", productCode)
}

func (c *Client) GetAvailability(ctx context.Context, productCode, startTimeLocal, endTimeLocal string) ([]AvailabilitySession, error) {
	params := url.Values{}
	params.Set("productCode", productCode)
	params.Set("startTimeLocal", startTimeLocal)
	params.Set("endTimeLocal", endTimeLocal)
	parsed, err := c.get(ctx, "/availability", params)
	if err != nil {
		return nil, err
	}
	return parsed.Sessions, nil
}

// GetProductPickups is scoped to one product so the pickup fallback path never
// pays for a bulk catalog fetch.
func (c *Client) GetProductPickups(ctx context.Context, productCode string) ([]PickupLocation, error) {
	parsed, err := c.get(ctx, "/products/"+url.PathEscape(productCode)+"/pickups", nil)
	if err != nil {
		return nil, err
	}
	return parsed.Pickups, nil
}
