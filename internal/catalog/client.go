// Package catalog talks to the storefront REST API for product and stock data.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fjod/shoes_cart/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

var ErrNotFound = errors.New("resource not found")

// consecutive failed requests after which the API is considered down
const breakerThreshold = 5

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	sfg        singleflight.Group
	breaker    *gobreaker.CircuitBreaker[struct{}]
}

// NewClient returns a client for the API rooted at baseURL, e.g. "http://localhost:3333".
// A zero timeout leaves requests bounded only by the caller's context.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}
	if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
	}

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    "storefront-api",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerThreshold
			},
			// a missing resource is an answer, not an outage
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound)
			},
		}),
	}, nil
}

// GetStock always hits the API; stock is never cached or shared between callers.
func (c *Client) GetStock(ctx context.Context, productID int64) (domain.Stock, error) {
	var stock domain.Stock
	if err := c.getJSON(ctx, "stock/"+strconv.FormatInt(productID, 10), &stock); err != nil {
		return domain.Stock{}, fmt.Errorf("get stock %d: %w", productID, err)
	}
	if stock.Amount < 0 {
		return domain.Stock{}, fmt.Errorf("get stock %d: negative amount %d", productID, stock.Amount)
	}
	stock.ID = productID
	return stock, nil
}

// GetProduct collapses concurrent lookups of the same product across all users of
// the client (handlers, publishers, several stores sharing one client). The shared
// request is detached from any single caller's cancellation and bounded by the
// client timeout; each caller still stops waiting when its own ctx is done.
func (c *Client) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	path := "products/" + strconv.FormatInt(productID, 10)
	shared := context.WithoutCancel(ctx)
	ch := c.sfg.DoChan(path, func() (interface{}, error) {
		var p domain.Product
		if err := c.getJSON(shared, path, &p); err != nil {
			return nil, err
		}
		return p, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return domain.Product{}, fmt.Errorf("get product %d: %w", productID, ctx.Err())
	}
	if res.Err != nil {
		return domain.Product{}, fmt.Errorf("get product %d: %w", productID, res.Err)
	}

	product := res.Val.(domain.Product)
	product.ID = productID
	return product, nil
}

// getJSON fails fast while the breaker is open.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.fetch(ctx, path, out)
	})
	return err
}

func (c *Client) fetch(ctx context.Context, path string, out interface{}) error {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
