// Package fred implements contracts.Provider against the St. Louis Fed FRED API.
package fred

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/httputil"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

// MaxPageSize is the largest page the observations endpoint serves
const MaxPageSize = 100000

// Client handles communication with the FRED API
// ⭐ SSOT: FRED API calls are made by this client only
type Client struct {
	http     *httputil.Client
	logger   *logger.Logger
	apiKey   string
	baseURL  string
	pageSize int
}

// NewClient creates a new FRED client on top of a configured httputil.Client
// (timeout, retry and rate limiting are the caller's choice)
func NewClient(httpClient *httputil.Client, apiKey, baseURL string, log *logger.Logger) *Client {
	return &Client{
		http:     httpClient,
		logger:   log.Module("fred"),
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: MaxPageSize,
	}
}

// WithPageSize overrides the observation page size
func (c *Client) WithPageSize(n int) *Client {
	if n > 0 && n <= MaxPageSize {
		c.pageSize = n
	}
	return c
}

var _ contracts.Provider = (*Client)(nil)

func (c *Client) endpoint(path string, params url.Values) string {
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	return c.baseURL + path + "?" + params.Encode()
}

// classify maps a transport or HTTP failure onto the provider taxonomy
func classify(op, seriesID string, err error) error {
	kind := contracts.ProviderPermanent

	var statusErr *httputil.StatusError
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr):
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			kind = contracts.ProviderRateLimited
		case statusErr.StatusCode >= 500:
			kind = contracts.ProviderTransient
		case statusErr.StatusCode == http.StatusNotFound,
			statusErr.StatusCode == http.StatusBadRequest && strings.Contains(statusErr.Body, "does not exist"):
			kind = contracts.ProviderNotFound
		}
	case errors.Is(err, context.Canceled):
		kind = contracts.ProviderPermanent
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		kind = contracts.ProviderTransient
	}

	return &contracts.ProviderError{Kind: kind, SeriesID: seriesID, Op: op, Err: err}
}

func wrapDecode(op, seriesID string, err error) error {
	return &contracts.ProviderError{
		Kind:     contracts.ProviderPermanent,
		SeriesID: seriesID,
		Op:       op,
		Err:      fmt.Errorf("malformed response: %w", err),
	}
}
