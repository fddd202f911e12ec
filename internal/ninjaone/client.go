// Package ninjaone is a minimal NinjaOne RMM API client.
package ninjaone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/assetsync/internal/logging"
	"github.com/example/assetsync/internal/rate"
	"github.com/example/assetsync/internal/types"
	"go.uber.org/zap"
)

const devicesPath = "/v2/devices"

// AssetFetcher abstracts listing devices from NinjaOne.
type AssetFetcher interface {
	FetchAssets(ctx context.Context) ([]types.NinjaAsset, error)
}

// Limiter throttles outbound calls per upstream host. *rate.LimiterMap satisfies it.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// StatusError is returned when NinjaOne answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ninjaone: unexpected status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	limiter Limiter
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }
func WithLimiter(l Limiter) Option          { return func(c *Client) { c.limiter = l } }
func WithLogger(lg *zap.Logger) Option      { return func(c *Client) { c.log = lg } }

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	c.log = logging.OrNop(c.log).With(zap.String("upstream", "ninjaone"))
	return c
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// FetchAssets lists devices. Paging is not implemented; one page is returned.
func (c *Client) FetchAssets(ctx context.Context) ([]types.NinjaAsset, error) {
	c.log.Info("fetching assets")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(devicesPath), nil)
	if err != nil {
		return nil, fmt.Errorf("ninjaone: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rate.HostKey(req)); err != nil {
			return nil, fmt.Errorf("ninjaone: rate limit: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ninjaone: fetch devices: %w", err)
	}
	defer resp.Body.Close()
	c.log.Debug("devices response", zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	assets, err := decodeDevices(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ninjaone: decode devices: %w", err)
	}
	return assets, nil
}

// decodeDevices accepts either a bare JSON array or an object with a "devices"
// array. Numbers are kept as json.Number so large ids survive.
func decodeDevices(r io.Reader) ([]types.NinjaAsset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty body")
	}
	switch raw[0] {
	case '[':
		var out []types.NinjaAsset
		if err := unmarshalNumbers(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	case '{':
		var env struct {
			Devices []types.NinjaAsset `json:"devices"`
		}
		if err := unmarshalNumbers(raw, &env); err != nil {
			return nil, err
		}
		if env.Devices == nil {
			return []types.NinjaAsset{}, nil
		}
		return env.Devices, nil
	default:
		return nil, fmt.Errorf("unexpected payload starting with %q", raw[0])
	}
}

func unmarshalNumbers(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}
