// Package cms reads site content from the Sanity HTTP query API.
//
// Every query result is cached under the content tags it depends on, so a
// revalidation webhook that invalidates a tag also refreshes the data.
package cms

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"renda-edge/internal/circuitbreaker"
	"renda-edge/internal/common/cache"
	"renda-edge/internal/common/errors"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/metrics"
)

// Content tags. They match the tags the revalidation dispatcher invalidates.
const (
	TagProducts     = "products"
	TagAssociations = "associations"
	TagNews         = "news"
	TagSettings     = "settings"
)

// Config holds Sanity connection settings.
type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	UseCDN     bool
	// BaseURL overrides the host derived from ProjectID.
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client queries Sanity through a circuit breaker and a tagged cache.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	breaker  *circuitbreaker.Breaker
	cache    cache.Store
	ttl      time.Duration
	logger   logging.Logger
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Description string `json:"description"`
		Type        string `json:"type"`
	} `json:"error,omitempty"`
}

// NewClient builds a client. store may be nil to disable caching.
func NewClient(config Config, store cache.Store, logger logging.Logger) (*Client, error) {
	if config.ProjectID == "" && config.BaseURL == "" {
		return nil, errors.ConfigError("sanity project id is required")
	}
	if config.Dataset == "" {
		config.Dataset = "production"
	}
	if config.APIVersion == "" {
		config.APIVersion = "2024-01-01"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	base := config.BaseURL
	if base == "" {
		host := "api"
		// The CDN does not serve authenticated (draft-capable) queries.
		if config.UseCDN && config.Token == "" {
			host = "apicdn"
		}
		base = fmt.Sprintf("https://%s.%s.sanity.io", config.ProjectID, host)
	}

	logger = logger.WithFields(logging.String("component", "cms"))
	return &Client{
		endpoint: fmt.Sprintf("%s/v%s/data/query/%s", base, config.APIVersion, url.PathEscape(config.Dataset)),
		token:    config.Token,
		http:     &http.Client{Timeout: config.Timeout},
		breaker:  circuitbreaker.New("sanity", circuitbreaker.CMSConfig, logger),
		cache:    store,
		ttl:      config.CacheTTL,
		logger:   logger,
	}, nil
}

// Query runs a GROQ query and decodes its result into dst. A null result is
// reported as NotFoundError(resource).
func (c *Client) Query(ctx context.Context, resource, query string, params map[string]interface{}, tags []string, dst interface{}) error {
	key := cacheKey(query, params)
	if c.cache != nil {
		if raw, ok := c.cache.Get(ctx, key); ok {
			return decodeResult(raw, resource, dst)
		}
	}

	var raw json.RawMessage
	err := c.breaker.Execute(ctx, func() error {
		var err error
		raw, err = c.fetch(ctx, query, params)
		return err
	})
	if err != nil {
		metrics.CMSRequests.WithLabelValues("error").Inc()
		return err
	}
	metrics.CMSRequests.WithLabelValues("ok").Inc()

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl, tags...); err != nil {
			c.logger.Warn("Failed to cache CMS result", logging.String("resource", resource), logging.Err(err))
		}
	}
	return decodeResult(raw, resource, dst)
}

func (c *Client) fetch(ctx context.Context, query string, params map[string]interface{}) (json.RawMessage, error) {
	values := url.Values{}
	values.Set("query", query)
	for name, v := range params {
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, errors.InternalError("encode query param "+name, err)
		}
		values.Set("$"+name, string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, errors.InternalError("build CMS request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.UnavailableError("CMS request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.UnavailableError("read CMS response", err)
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, errors.UnavailableError("decode CMS response", err).WithContext("status", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || qr.Error != nil {
		appErr := errors.UnavailableError("CMS query failed", nil).WithContext("status", resp.StatusCode)
		if qr.Error != nil {
			appErr = appErr.WithContext("cms_error", qr.Error.Description)
		}
		if resp.StatusCode == http.StatusBadRequest {
			// A rejected query is our bug, not an outage.
			appErr.Type = errors.ErrTypeInternal
		}
		return nil, appErr
	}
	return qr.Result, nil
}

func decodeResult(raw json.RawMessage, resource string, dst interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errors.NotFoundError(resource)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.InternalError("decode "+resource, err)
	}
	return nil
}

func cacheKey(query string, params map[string]interface{}) string {
	h := sha256.New()
	h.Write([]byte(query))
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		encoded, _ := json.Marshal(params[name])
		fmt.Fprintf(h, "\x00%s=%s", name, encoded)
	}
	return "cms:" + hex.EncodeToString(h.Sum(nil))
}

// Health reports whether the CMS circuit is closed.
func (c *Client) Health() error {
	if c.breaker.IsOpen() {
		return errors.UnavailableError("CMS circuit open", nil)
	}
	return nil
}
