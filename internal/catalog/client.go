// Package catalog fetches the role/type catalog served by GET /v1/types/all.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/schema"
)

// Path is the catalog endpoint relative to the API base URL.
const Path = "/v1/types/all"

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// Sink receives a fetched catalog.
type Sink interface {
	SetCatalog(catalog schema.Catalog) bool
}

// Config configures the catalog client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

// Client fetches the catalog.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}
	httpClient := cfg.Client
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{endpoint: base + Path, token: strings.TrimSpace(cfg.Token), http: httpClient}, nil
}

// Fetch retrieves and validates the catalog.
func (c *Client) Fetch(ctx context.Context) (schema.Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return schema.Catalog{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return schema.Catalog{}, fmt.Errorf("fetch catalog: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return schema.Catalog{}, fmt.Errorf("fetch catalog: unexpected status %d", resp.StatusCode)
	}
	var catalog schema.Catalog
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&catalog); err != nil {
		return schema.Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if len(catalog.Roles) == 0 {
		return schema.Catalog{}, errors.New("decode catalog: no roles")
	}
	if len(catalog.TabTypes) == 0 {
		catalog.TabTypes = schema.TabTypes()
	}
	return catalog, nil
}

// Load fetches the catalog into sink. On failure the sink keeps its current catalog.
func (c *Client) Load(ctx context.Context, sink Sink) error {
	log := pslog.Ctx(ctx)
	catalog, err := c.Fetch(ctx)
	if err != nil {
		log.Warn("catalog load failed", "err", err, "endpoint", c.endpoint)
		return err
	}
	changed := sink.SetCatalog(catalog)
	log.Info("catalog loaded", "revision", catalog.Revision, "scopes", len(catalog.Roles), "changed", changed)
	return nil
}

// Refresh loads the catalog now and then every interval until ctx is done.
func (c *Client) Refresh(ctx context.Context, sink Sink, interval time.Duration) {
	_ = c.Load(ctx, sink)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Load(ctx, sink)
		}
	}
}
