// Package catalog talks to the remote product and stock API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/abgdnv/rocketcart/internal/cart"
	"github.com/abgdnv/rocketcart/pkg/client/resilience"
	"github.com/abgdnv/rocketcart/pkg/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

var ErrUnexpectedStatus = errors.New("unexpected status from catalog")
var ErrNotFound = errors.New("not found in catalog")

// maxBodyBytes bounds how much of a catalog response is read.
const maxBodyBytes = 1 << 20

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	CircuitBreaker config.CircuitBreakerConfig
	// Transport is the innermost round tripper, http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// Client implements cart.StockLookup and cart.ProductLookup over HTTP.
// Concurrent lookups of the same resource share one request.
type Client struct {
	baseURL *url.URL
	timeout time.Duration
	http    *http.Client
	breaker *resilience.BreakerTransport
	group   singleflight.Group
}

func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid catalog base url %q: scheme must be http or https", cfg.BaseURL)
	}

	c := &Client{baseURL: base, timeout: cfg.Timeout}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.CircuitBreaker.Enabled {
		c.breaker = resilience.NewBreakerTransport("catalog", cfg.CircuitBreaker, transport)
		transport = c.breaker
	}
	c.http = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(transport),
	}
	return c, nil
}

// BreakerState reports the circuit breaker state, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Stock fetches GET /stock/{id}. A 404 is ErrNotFound.
func (c *Client) Stock(ctx context.Context, productID int) (cart.Stock, error) {
	v, err := c.shared(ctx, "stock/"+strconv.Itoa(productID), func(ctx context.Context) (any, error) {
		var s cart.Stock
		if err := c.get(ctx, "stock/"+strconv.Itoa(productID), &s); err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return cart.Stock{}, err
	}
	return v.(cart.Stock), nil
}

// Product fetches GET /products/{id}. A 404 is cart.ErrProductNotFound.
func (c *Client) Product(ctx context.Context, productID int) (cart.Product, error) {
	v, err := c.shared(ctx, "products/"+strconv.Itoa(productID), func(ctx context.Context) (any, error) {
		var p cart.Product
		if err := c.get(ctx, "products/"+strconv.Itoa(productID), &p); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, cart.ErrProductNotFound
			}
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return cart.Product{}, err
	}
	return v.(cart.Product), nil
}

// shared runs fetch once for all concurrent callers of path. The fetch keeps the
// values of the first caller's ctx but not its cancellation, and is bounded by the
// client timeout. Each caller stops waiting when its own ctx is done.
func (c *Client) shared(ctx context.Context, path string, fetch func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(path, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, c.timeout)
			defer cancel()
		}
		return fetch(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	u := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u.Path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("GET %s: %w: %d", u.Path, ErrUnexpectedStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("GET %s: failed to decode response: %w", u.Path, err)
	}
	return nil
}
