// Package orders is the boundary to the upstream order lookup API. All
// outbound calls go through a circuit-breaking, retrying HTTP client; the
// rest of the relay only sees types.Order values and Transient/Permanent
// errors.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"notifyrelay/internal/types"
)

// API is the order lookup surface consumed by the enrichment workflow.
// The access token is per-subscriber, so it travels with each call rather
// than living on the client.
type API interface {
	GetOrder(ctx context.Context, token types.SecretString, orderID string) (*types.Order, error)
	GetOrderItems(ctx context.Context, token types.SecretString, orderID string) ([]types.OrderItem, error)
}

// RetryPolicy configures retry behavior for order lookups.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns defaults tuned for a Lambda message budget:
// a slow upstream must not eat the whole batch window.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    2 * time.Second,
	}
}

// Client implements API over HTTP with circuit breaking and bounded
// retry with jitter. Retries cover 429 and 5xx only; everything else is
// resolved on the first attempt.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	logger      types.Logger
	sleepFn     func(time.Duration)
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retryPolicy = p
	}
}

// WithSleepFunc overrides the sleep between retries. For tests.
func WithSleepFunc(fn func(time.Duration)) ClientOption {
	return func(c *Client) {
		c.sleepFn = fn
	}
}

// WithUserAgent sets the User-Agent header on outbound requests.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates an order lookup client against the given base URL.
func NewClient(baseURL string, httpClient *http.Client, logger types.Logger, opts ...ClientOption) *Client {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "orders-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	c := &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		breaker:     cb,
		retryPolicy: DefaultRetryPolicy(),
		logger:      logger,
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// orderPayload is the wire shape of the order header response. The API
// nests the resource under a "payload" key.
type orderPayload struct {
	Payload struct {
		AmazonOrderID string      `json:"AmazonOrderId"`
		OrderStatus   string      `json:"OrderStatus"`
		OrderTotal    types.Money `json:"OrderTotal"`
	} `json:"payload"`
}

// orderItemsPayload is the wire shape of the order items response.
type orderItemsPayload struct {
	Payload struct {
		AmazonOrderID string `json:"AmazonOrderId"`
		OrderItems    []struct {
			SellerSKU       string `json:"SellerSKU"`
			QuantityOrdered int    `json:"QuantityOrdered"`
		} `json:"OrderItems"`
	} `json:"payload"`
}

// GetOrder fetches the order header for orderID.
func (c *Client) GetOrder(ctx context.Context, token types.SecretString, orderID string) (*types.Order, error) {
	url := fmt.Sprintf("%s/orders/v0/orders/%s", c.baseURL, orderID)
	body, err := c.get(ctx, "orders.get", url, token)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, types.Permanent("orders.get",
				fmt.Sprintf("order %s not found", orderID), types.ErrOrderNotFound)
		}
		return nil, err
	}

	var wire orderPayload
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, types.Permanent("orders.get", "undecodable order response", err)
	}

	return &types.Order{
		AmazonOrderID: wire.Payload.AmazonOrderID,
		OrderStatus:   wire.Payload.OrderStatus,
		OrderTotal:    wire.Payload.OrderTotal,
	}, nil
}

// GetOrderItems fetches the line items for orderID.
func (c *Client) GetOrderItems(ctx context.Context, token types.SecretString, orderID string) ([]types.OrderItem, error) {
	url := fmt.Sprintf("%s/orders/v0/orders/%s/orderItems", c.baseURL, orderID)
	body, err := c.get(ctx, "orders.getItems", url, token)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, types.Permanent("orders.getItems",
				fmt.Sprintf("order %s not found", orderID), types.ErrOrderNotFound)
		}
		return nil, err
	}

	var wire orderItemsPayload
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, types.Permanent("orders.getItems", "undecodable order items response", err)
	}

	items := make([]types.OrderItem, 0, len(wire.Payload.OrderItems))
	for _, it := range wire.Payload.OrderItems {
		items = append(items, types.OrderItem{
			SKU:      it.SellerSKU,
			Quantity: it.QuantityOrdered,
		})
	}
	return items, nil
}

// errNotFound marks a 404 internally so the callers can attach the right
// sentinel per operation.
var errNotFound = errors.New("resource not found")

// get performs a resilient GET and returns the response body on 2xx.
// Classification:
//
//   - 404: errNotFound (callers wrap with the operation sentinel)
//   - other 4xx: permanent
//   - 429/5xx after retries, network errors, open breaker: transient
func (c *Client) get(ctx context.Context, op, url string, token types.SecretString) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.Permanent(op, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-amz-access-token", token.Unmask())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.httpClient.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// 429 and 5xx count against the breaker.
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			return c.readSuccess(op, resp)
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}

		if attempt < maxAttempts-1 {
			wait := c.computeBackoff(attempt, resp)
			c.logger.Warn("order lookup attempt failed, retrying",
				"op", op,
				"attempt", attempt+1,
				"wait", wait.String(),
			)
			c.sleepFn(wait)
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, c.mapFailure(op, lastResp, lastErr)
}

// readSuccess drains a breaker-accepted response. The breaker only lets
// through non-429, non-5xx statuses, so anything left that is not 2xx is
// a client error and permanent.
func (c *Client) readSuccess(op string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.Transient(op, "failed to read response body", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	default:
		return nil, types.Permanent(op,
			fmt.Sprintf("upstream client error %d", resp.StatusCode), nil)
	}
}

// computeBackoff respects Retry-After when present, otherwise uses
// exponential backoff with full jitter clamped to [MinWait, MaxWait].
func (c *Client) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				wait := time.Duration(seconds) * time.Second
				if wait > c.retryPolicy.MaxWait {
					wait = c.retryPolicy.MaxWait
				}
				return wait
			}
		}
	}

	base := float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt))
	maxWait := float64(c.retryPolicy.MaxWait)
	if base > maxWait {
		base = maxWait
	}
	minWait := float64(c.retryPolicy.MinWait)
	if base <= minWait {
		return c.retryPolicy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

// mapFailure translates an exhausted attempt loop into a typed error.
func (c *Client) mapFailure(op string, resp *http.Response, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.Transient(op, "circuit breaker open", err)
	}
	if resp != nil {
		return types.Transient(op,
			fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
	}
	return types.Transient(op, "upstream request failed", err)
}
