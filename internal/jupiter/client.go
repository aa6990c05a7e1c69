// Package jupiter implements a client for the Jupiter v6 quote and swap API.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/retry"
)

// DefaultBaseURL is the public Jupiter v6 endpoint.
const DefaultBaseURL = "https://quote-api.jup.ag/v6"

// DefaultTimeout bounds a single quote or swap-build request.
const DefaultTimeout = 10 * time.Second

// ErrNoRoute is returned when Jupiter has no route between the two mints.
var ErrNoRoute = errors.New("no route found")

// Quoter is the consumer-side interface for price quotes and swap builds.
type Quoter interface {
	// Quote requests a swap quote for amount base units of inputMint.
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error)

	// BuildSwapTransaction builds an unsigned serialized transaction for a
	// previously obtained quote. Returns the base64 payload.
	BuildSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string, priorityFeeLamports uint64) (string, error)
}

// Quote is a parsed Jupiter quote. Raw carries the untouched response body,
// which the swap endpoint requires verbatim.
type Quote struct {
	InputMint            string
	OutputMint           string
	InAmount             uint64
	OutAmount            uint64
	OtherAmountThreshold uint64
	PriceImpactPct       float64
	SlippageBps          int
	RoutePlan            []RouteStep

	Raw json.RawMessage
}

// RouteStep is one hop of the quoted route.
type RouteStep struct {
	AmmKey  string
	Label   string
	Percent int
}

// Client is an HTTP Jupiter API client.
type Client struct {
	baseURL string
	client  *http.Client
	policy  retry.Policy
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithRetryPolicy replaces the default backoff policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// NewClient creates a Jupiter API client.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		policy:  retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// quoteResponse is the raw v6 quote body. Amount fields are decimal strings.
type quoteResponse struct {
	InputMint            string  `json:"inputMint"`
	OutputMint           string  `json:"outputMint"`
	InAmount             string  `json:"inAmount"`
	OutAmount            string  `json:"outAmount"`
	OtherAmountThreshold string  `json:"otherAmountThreshold"`
	PriceImpactPct       string  `json:"priceImpactPct"`
	SlippageBps          int     `json:"slippageBps"`
	RoutePlan            []struct {
		SwapInfo struct {
			AmmKey string `json:"ammKey"`
			Label  string `json:"label"`
		} `json:"swapInfo"`
		Percent int `json:"percent"`
	} `json:"routePlan"`
}

type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// Quote requests a swap quote.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.Itoa(slippageBps))

	endpoint := c.baseURL + "/quote?" + params.Encode()

	start := time.Now()
	defer func() {
		observability.RecordQuoteLatency(time.Since(start).Seconds())
	}()

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var raw quoteResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}
	if len(raw.RoutePlan) == 0 {
		return nil, ErrNoRoute
	}

	quote := &Quote{
		InputMint:   raw.InputMint,
		OutputMint:  raw.OutputMint,
		SlippageBps: raw.SlippageBps,
		Raw:         body,
	}

	if quote.InAmount, err = strconv.ParseUint(raw.InAmount, 10, 64); err != nil {
		return nil, fmt.Errorf("parse inAmount %q: %w", raw.InAmount, err)
	}
	if quote.OutAmount, err = strconv.ParseUint(raw.OutAmount, 10, 64); err != nil {
		return nil, fmt.Errorf("parse outAmount %q: %w", raw.OutAmount, err)
	}
	if quote.OtherAmountThreshold, err = strconv.ParseUint(raw.OtherAmountThreshold, 10, 64); err != nil {
		return nil, fmt.Errorf("parse otherAmountThreshold %q: %w", raw.OtherAmountThreshold, err)
	}
	if raw.PriceImpactPct != "" {
		if quote.PriceImpactPct, err = strconv.ParseFloat(raw.PriceImpactPct, 64); err != nil {
			return nil, fmt.Errorf("parse priceImpactPct %q: %w", raw.PriceImpactPct, err)
		}
	}

	for _, step := range raw.RoutePlan {
		quote.RoutePlan = append(quote.RoutePlan, RouteStep{
			AmmKey:  step.SwapInfo.AmmKey,
			Label:   step.SwapInfo.Label,
			Percent: step.Percent,
		})
	}

	return quote, nil
}

// swapRequest is the v6 swap build request.
type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports uint64          `json:"prioritizationFeeLamports,omitempty"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// BuildSwapTransaction builds an unsigned serialized swap transaction.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string, priorityFeeLamports uint64) (string, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return "", fmt.Errorf("quote missing raw response")
	}

	reqBody, err := json.Marshal(swapRequest{
		QuoteResponse:             quote.Raw,
		UserPublicKey:             userPublicKey,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: priorityFeeLamports,
	})
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	body, err := c.post(ctx, c.baseURL+"/swap", reqBody)
	if err != nil {
		return "", err
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshal swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return "", fmt.Errorf("empty swap transaction in response")
	}

	return resp.SwapTransaction, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	return c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// do executes a request with retries. 4xx responses are not retried;
// a missing-route error maps to ErrNoRoute.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	var result []byte

	err := c.policy.Do(ctx, func() error {
		req, err := build()
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			return fmt.Errorf("http request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			result = body
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("rate limited (429)")
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			var apiErr apiError
			if json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorCode == "COULD_NOT_FIND_ANY_ROUTE" {
				return retry.Permanent(ErrNoRoute)
			}
			return retry.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
		default:
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
