// Package freshservice is a minimal Freshservice CMDB client.
package freshservice

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

const itemsPath = "/cmdb/items"

// ErrMissingName is returned before any request when the payload has no name.
var ErrMissingName = errors.New("freshservice: asset payload has no name")

// AssetUpserter abstracts creating or updating a CMDB item.
type AssetUpserter interface {
	UpsertAsset(ctx context.Context, asset types.FreshAsset) (types.UpsertResult, error)
}

// Limiter throttles outbound calls per upstream host. *rate.LimiterMap satisfies it.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// StatusError is returned when Freshservice answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("freshservice: unexpected status %d: %s", e.StatusCode, e.Body)
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
	c.log = logging.OrNop(c.log).With(zap.String("upstream", "freshservice"))
	return c
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// UpsertAsset posts the payload to the CMDB. Freshservice answers 201 for a new
// item and 200 when it matched an existing one.
func (c *Client) UpsertAsset(ctx context.Context, asset types.FreshAsset) (types.UpsertResult, error) {
	if asset.Name == "" {
		return types.UpsertResult{}, ErrMissingName
	}
	c.log.Debug("upserting asset", zap.String("asset", asset.Name))

	body, err := json.Marshal(asset)
	if err != nil {
		return types.UpsertResult{}, fmt.Errorf("freshservice: encode asset: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(itemsPath), bytes.NewReader(body))
	if err != nil {
		return types.UpsertResult{}, fmt.Errorf("freshservice: build request: %w", err)
	}
	// Freshservice takes the API key as the basic auth user with a dummy password.
	req.SetBasicAuth(c.apiKey, "X")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rate.HostKey(req)); err != nil {
			return types.UpsertResult{}, fmt.Errorf("freshservice: rate limit: %w", err)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return types.UpsertResult{}, fmt.Errorf("freshservice: upsert %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.UpsertResult{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	res := types.UpsertResult{Created: resp.StatusCode == http.StatusCreated}
	raw, err := decodeObject(resp.Body)
	if err != nil {
		return types.UpsertResult{}, fmt.Errorf("freshservice: decode response: %w", err)
	}
	res.Raw = raw
	res.ID = itemID(raw)
	return res, nil
}

func decodeObject(r io.Reader) (map[string]any, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	out := map[string]any{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// itemID looks for the id at the top level or under a "config_item" or "item" wrapper.
func itemID(raw map[string]any) string {
	if id, ok := raw["id"]; ok && id != nil {
		return fmt.Sprint(id)
	}
	for _, k := range []string{"config_item", "item"} {
		if inner, ok := raw[k].(map[string]any); ok {
			if id, ok := inner["id"]; ok && id != nil {
				return fmt.Sprint(id)
			}
		}
	}
	return ""
}
