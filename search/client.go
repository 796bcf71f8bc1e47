package search

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/use-agent/syphon/config"
	"github.com/use-agent/syphon/models"
)

// Provider is one search endpoint variant together with the anchor
// selector its markup needs.
type Provider struct {
	Name     string
	Endpoint string
	Selector string
}

// Client fetches search-result markup, falling back across endpoint
// variants when one fails at transport level or answers with a bot
// interstitial.
type Client struct {
	providers  []Provider
	fetcher    *fetcher
	siteFilter string
}

// NewClient builds a Client from the search configuration. socksAddr
// routes the transport through the anonymizing proxy; empty means direct.
func NewClient(cfg config.SearchConfig, socksAddr string) *Client {
	providers := []Provider{
		{Name: "html", Endpoint: cfg.Endpoint, Selector: cfg.Selector},
	}
	if cfg.FallbackEndpoint != "" {
		providers = append(providers, Provider{
			Name:     "lite",
			Endpoint: cfg.FallbackEndpoint,
			Selector: cfg.FallbackSelector,
		})
	}
	return &Client{
		providers:  providers,
		fetcher:    newFetcher(socksAddr, cfg.UserAgent, cfg.Timeout),
		siteFilter: cfg.SiteFilter,
	}
}

// Providers returns the configured endpoint variants in fallback order.
func (c *Client) Providers() []Provider {
	return c.providers
}

// Search fetches result markup for the query and returns it together with
// the provider that produced it. Every variant failing at transport level
// is a SEARCH_TRANSPORT error; an interstitial on every variant returns
// the last markup so extraction reports zero matches instead.
func (c *Client) Search(ctx context.Context, query string) (string, Provider, error) {
	q := query
	if c.siteFilter != "" {
		q = query + " " + c.siteFilter
	}

	var (
		lastErr      error
		lastMarkup   string
		lastProvider Provider
	)

	for _, p := range c.providers {
		target := p.Endpoint + "?q=" + url.QueryEscape(q)

		body, err := c.fetcher.fetch(ctx, target)
		if err != nil {
			lastErr = err
			slog.Warn("search request failed", "provider", p.Name, "error", err)
			continue
		}

		if reason, bad := blocked(body); bad {
			slog.Warn("search backend served an interstitial",
				"provider", p.Name,
				"reason", reason,
			)
			lastMarkup, lastProvider = string(body), p
			continue
		}

		slog.Debug("search markup fetched", "provider", p.Name, "bytes", len(body))
		return string(body), p, nil
	}

	if lastMarkup != "" {
		// Every variant answered, just not with results. Hand the markup
		// back so the zero-match outcome is reported as "no results",
		// which is distinct from the backend being unreachable.
		return lastMarkup, lastProvider, nil
	}

	return "", Provider{}, models.NewCollectError(
		models.ErrCodeSearchTransport,
		"search backend unreachable",
		lastErr,
	)
}
